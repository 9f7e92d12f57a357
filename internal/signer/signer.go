package signer

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	sha256 "github.com/minio/sha256-simd"
)

const (
	// Algorithm identifies the signing scheme in the string to sign and the header.
	Algorithm = "AWS4-HMAC-SHA256"

	// DefaultRegion is the region R2 expects in the credential scope.
	DefaultRegion = "auto"
	// DefaultService is the S3 service name used in the credential scope.
	DefaultService = "s3"

	// HeaderDate carries the request timestamp.
	HeaderDate = "x-amz-date"
	// HeaderContentSHA256 carries the hex payload digest.
	HeaderContentSHA256 = "x-amz-content-sha256"
	// HeaderHost is always signed.
	HeaderHost = "host"

	// EmptyPayloadHash is the hex SHA-256 of an empty body.
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	secretPrefix = "AWS4"
	scopeSuffix  = "aws4_request"

	amzDateLayout   = "20060102T150405Z"
	dateStampLayout = "20060102"
)

var (
	errNoCredentials = errors.New("access key id and secret key are required")
	errNoHost        = errors.New("host is required")
	errNoMethod      = errors.New("method is required")
	errBadPayload    = errors.New("payload hash must be 64 hex characters")
)

// Credentials identify the signing principal.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Request describes everything that takes part in the signature.
type Request struct {
	// Method is the HTTP method, e.g. PUT.
	Method string
	// Host is the value of the Host header.
	Host string
	// Path is the unescaped request path; each segment is encoded on signing.
	Path string
	// Headers are additional signed headers such as Content-Disposition.
	Headers map[string]string
	// PayloadHash is the hex SHA-256 of the request body.
	PayloadHash string
	// Time is the request timestamp; it is converted to UTC.
	Time time.Time
}

// Signature holds the values the caller must attach to the outgoing request.
type Signature struct {
	// Authorization is the full Authorization header value.
	Authorization string
	// AmzDate is the x-amz-date header value.
	AmzDate string
	// ContentSHA256 is the x-amz-content-sha256 header value.
	ContentSHA256 string
	// Scope is the credential scope date/region/service/aws4_request.
	Scope string
	// SignedHeaders is the semicolon separated list of signed header names.
	SignedHeaders string
	// Signature is the hex request signature.
	Signature string
}

// Signer signs requests for one set of credentials, region and service.
type Signer struct {
	creds   Credentials
	region  string
	service string
	// signContentHash adds x-amz-content-sha256 to the signed headers.
	signContentHash bool
}

// Option configures a Signer.
type Option func(*Signer)

// WithRegion overrides the region in the credential scope.
func WithRegion(region string) Option {
	return func(s *Signer) {
		if region != "" {
			s.region = region
		}
	}
}

// WithService overrides the service in the credential scope.
func WithService(service string) Option {
	return func(s *Signer) {
		if service != "" {
			s.service = service
		}
	}
}

// WithoutContentHashHeader drops x-amz-content-sha256 from the signed headers.
// S3 requires the header; generic SigV4 services do not.
func WithoutContentHashHeader() Option {
	return func(s *Signer) {
		s.signContentHash = false
	}
}

// New creates a Signer with region "auto" and service "s3" unless overridden.
func New(creds Credentials, opts ...Option) *Signer {
	s := &Signer{
		creds:           creds,
		region:          DefaultRegion,
		service:         DefaultService,
		signContentHash: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sign computes the SigV4 authorization for req.
func (s *Signer) Sign(req Request) (*Signature, error) {
	if s.creds.AccessKeyID == "" || s.creds.SecretAccessKey == "" {
		return nil, errNoCredentials
	}

	if req.Method == "" {
		return nil, errNoMethod
	}

	if req.Host == "" {
		return nil, errNoHost
	}

	payloadHash := strings.ToLower(req.PayloadHash)
	if payloadHash == "" {
		payloadHash = EmptyPayloadHash
	}

	if _, err := hex.DecodeString(payloadHash); err != nil || len(payloadHash) != sha256.Size*2 {
		return nil, errBadPayload
	}

	var (
		now       = req.Time.UTC()
		amzDate   = now.Format(amzDateLayout)
		dateStamp = now.Format(dateStampLayout)
		scope     = Scope(dateStamp, s.region, s.service)
		headers   = s.headersToSign(req, amzDate, payloadHash)
	)

	canonical, signedHeaders := CanonicalRequest(req.Method, req.Path, headers, payloadHash)
	stringToSign := StringToSign(amzDate, scope, canonical)
	signingKey := SigningKey(s.creds.SecretAccessKey, dateStamp, s.region, s.service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authorization := Algorithm +
		" Credential=" + s.creds.AccessKeyID + "/" + scope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature

	return &Signature{
		Authorization: authorization,
		AmzDate:       amzDate,
		ContentSHA256: payloadHash,
		Scope:         scope,
		SignedHeaders: signedHeaders,
		Signature:     signature,
	}, nil
}

// headersToSign merges caller headers with host, date and optionally the payload digest.
func (s *Signer) headersToSign(req Request, amzDate, payloadHash string) map[string]string {
	headers := make(map[string]string, len(req.Headers)+3)
	for name, value := range req.Headers {
		headers[strings.ToLower(name)] = value
	}

	headers[HeaderHost] = req.Host
	headers[HeaderDate] = amzDate

	if s.signContentHash {
		headers[HeaderContentSHA256] = payloadHash
	}

	return headers
}

// Scope returns the credential scope date/region/service/aws4_request.
func Scope(dateStamp, region, service string) string {
	return dateStamp + "/" + region + "/" + service + "/" + scopeSuffix
}

// CanonicalRequest renders the canonical request and the signed header list.
// The query string is always empty.
func CanonicalRequest(method, path string, headers map[string]string, payloadHash string) (string, string) {
	names := make([]string, 0, len(headers))
	lowered := make(map[string]string, len(headers))

	for name, value := range headers {
		key := strings.ToLower(strings.TrimSpace(name))
		names = append(names, key)
		lowered[key] = strings.Join(strings.Fields(value), " ")
	}

	sort.Strings(names)

	var b strings.Builder

	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(EncodePath(path))
	b.WriteByte('\n')
	// Empty canonical query string.
	b.WriteByte('\n')

	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(lowered[name])
		b.WriteByte('\n')
	}

	signedHeaders := strings.Join(names, ";")

	b.WriteByte('\n')
	b.WriteString(signedHeaders)
	b.WriteByte('\n')
	b.WriteString(payloadHash)

	return b.String(), signedHeaders
}

// StringToSign combines the algorithm, timestamp, scope and canonical request digest.
func StringToSign(amzDate, scope, canonicalRequest string) string {
	digest := sha256.Sum256([]byte(canonicalRequest))

	return Algorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(digest[:])
}

// SigningKey derives kSigning through the kDate, kRegion and kService chain.
func SigningKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte(secretPrefix+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)

	return hmacSHA256(kService, scopeSuffix)
}

// PayloadHash returns the hex SHA-256 of body.
func PayloadHash(body []byte) string {
	digest := sha256.Sum256(body)

	return hex.EncodeToString(digest[:])
}

func hmacSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(message))

	return mac.Sum(nil)
}
