package signer

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	exampleAccessKey = "AKIDEXAMPLE"
	exampleSecret    = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
)

// TestSigningKey checks the key derivation chain against the published AWS example.
func TestSigningKey(t *testing.T) {
	t.Parallel()

	key := SigningKey(exampleSecret, "20120215", "us-east-1", "iam")
	require.Equal(t, "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d", hex.EncodeToString(key))
}

// TestSign_GetVanilla replays the get-vanilla case of the AWS SigV4 test suite.
func TestSign_GetVanilla(t *testing.T) {
	t.Parallel()

	s := New(
		Credentials{AccessKeyID: exampleAccessKey, SecretAccessKey: exampleSecret},
		WithRegion("us-east-1"),
		WithService("service"),
		WithoutContentHashHeader(),
	)

	sig, err := s.Sign(Request{
		Method: "GET",
		Host:   "example.amazonaws.com",
		Path:   "/",
		Time:   time.Date(2015, 8, 30, 12, 36, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Equal(t, "20150830T123600Z", sig.AmzDate)
	require.Equal(t, EmptyPayloadHash, sig.ContentSHA256)
	require.Equal(t, "host;x-amz-date", sig.SignedHeaders)
	require.Equal(t,
		"AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20150830/us-east-1/service/aws4_request, "+
			"SignedHeaders=host;x-amz-date, "+
			"Signature=5fa00fa31553b73ebf1942676e86291e8372ff2a2260956d9b8aae1d763fbf31",
		sig.Authorization)
}

func TestCanonicalRequest_GetVanilla(t *testing.T) {
	t.Parallel()

	canonical, signed := CanonicalRequest("GET", "/", map[string]string{
		"Host":       "example.amazonaws.com",
		"X-Amz-Date": "20150830T123600Z",
	}, EmptyPayloadHash)

	require.Equal(t, "host;x-amz-date", signed)
	require.Equal(t,
		"AWS4-HMAC-SHA256\n20150830T123600Z\n20150830/us-east-1/service/aws4_request\n"+
			"bb579772317eb040ac9ed261061d46c1f17a8133879d6129b6e1c25292927e63",
		StringToSign("20150830T123600Z", Scope("20150830", "us-east-1", "service"), canonical))
}

// TestSign_ObjectPut checks the exact canonical form of an artifact upload.
func TestSign_ObjectPut(t *testing.T) {
	t.Parallel()

	var (
		disposition = `attachment; filename="App Setup 1.2.3.exe"`
		body        = []byte("installer bytes")
		payload     = PayloadHash(body)
		when        = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	)

	canonical, signed := CanonicalRequest("PUT", "/releases/1.2.3/App Setup 1.2.3.exe", map[string]string{
		"Content-Disposition":  disposition,
		"Host":                 "acc.r2.cloudflarestorage.com",
		"X-Amz-Content-Sha256": payload,
		"X-Amz-Date":           "20240102T030405Z",
	}, payload)

	require.Equal(t, "content-disposition;host;x-amz-content-sha256;x-amz-date", signed)
	require.Equal(t, "PUT\n"+
		"/releases/1.2.3/App%20Setup%201.2.3.exe\n"+
		"\n"+
		"content-disposition:"+disposition+"\n"+
		"host:acc.r2.cloudflarestorage.com\n"+
		"x-amz-content-sha256:"+payload+"\n"+
		"x-amz-date:20240102T030405Z\n"+
		"\n"+
		"content-disposition;host;x-amz-content-sha256;x-amz-date\n"+
		payload, canonical)

	s := New(Credentials{AccessKeyID: "key-id", SecretAccessKey: "secret"})

	req := Request{
		Method:      "PUT",
		Host:        "acc.r2.cloudflarestorage.com",
		Path:        "/releases/1.2.3/App Setup 1.2.3.exe",
		Headers:     map[string]string{"Content-Disposition": disposition},
		PayloadHash: payload,
		Time:        when,
	}

	first, err := s.Sign(req)
	require.NoError(t, err)

	second, err := s.Sign(req)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, "20240102/auto/s3/aws4_request", first.Scope)
	require.Equal(t, payload, first.ContentSHA256)
	require.Equal(t,
		"AWS4-HMAC-SHA256 Credential=key-id/20240102/auto/s3/aws4_request, "+
			"SignedHeaders=content-disposition;host;x-amz-content-sha256;x-amz-date, "+
			"Signature=79023bb3366d740cedfaadd5e2aefcecae6fc17287c5ed9ed2e261256f0d3402",
		first.Authorization)
	require.Equal(t, "79023bb3366d740cedfaadd5e2aefcecae6fc17287c5ed9ed2e261256f0d3402", first.Signature)

	other, err := New(Credentials{AccessKeyID: "key-id", SecretAccessKey: "other"}).Sign(req)
	require.NoError(t, err)
	require.NotEqual(t, first.Signature, other.Signature)
}

func TestSign_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Credentials{}).Sign(Request{Method: "PUT", Host: "h"})
	require.ErrorIs(t, err, errNoCredentials)

	s := New(Credentials{AccessKeyID: "a", SecretAccessKey: "b"})

	_, err = s.Sign(Request{Host: "h"})
	require.ErrorIs(t, err, errNoMethod)

	_, err = s.Sign(Request{Method: "PUT"})
	require.ErrorIs(t, err, errNoHost)

	_, err = s.Sign(Request{Method: "PUT", Host: "h", PayloadHash: "abc"})
	require.ErrorIs(t, err, errBadPayload)
}

func TestEncode(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/", EncodePath("/"))
	require.Equal(t, "/bucket/1.2.3/App%20Setup%201.2.3.exe", EncodePath("/bucket/1.2.3/App Setup 1.2.3.exe"))
	require.Equal(t, "1.2.3/App%281%29~_-.zip", EncodeKey("1.2.3/App(1)~_-.zip"))
	require.Equal(t, "latest.yml", EncodeKey("/latest.yml"))
	require.Equal(t, "%C3%A9", EncodeSegment("é"))
}
