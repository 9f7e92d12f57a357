package update

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/release-pipeline/internal/service/updater"
)

// Status struct keys.
const (
	fieldStatus  = "status"
	fieldVersion = "version"
	fieldPercent = "percent"
	fieldMessage = "message"
)

// toProtoStatus converts a status to its wire form. Only the fields relevant
// to the status kind are set.
func toProtoStatus(s updater.Status) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldStatus: structpb.NewStringValue(s.Kind.String()),
	}

	switch s.Kind {
	case updater.KindAvailable, updater.KindDownloaded:
		fields[fieldVersion] = structpb.NewStringValue(s.Version)
	case updater.KindDownloading:
		fields[fieldPercent] = structpb.NewNumberValue(s.Percent)
	case updater.KindError:
		fields[fieldMessage] = structpb.NewStringValue(s.Message)
	default:
	}

	return &structpb.Struct{Fields: fields}
}

// FromProtoStatus converts the wire form back to a status.
func FromProtoStatus(msg *structpb.Struct) (updater.Status, bool) {
	fields := msg.GetFields()

	kind, ok := updater.ParseKind(fields[fieldStatus].GetStringValue())
	if !ok {
		return updater.Status{}, false
	}

	return updater.Status{
		Kind:    kind,
		Version: fields[fieldVersion].GetStringValue(),
		Percent: fields[fieldPercent].GetNumberValue(),
		Message: fields[fieldMessage].GetStringValue(),
	}, true
}
