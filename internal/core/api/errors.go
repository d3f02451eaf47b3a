package api

import (
	"context"
	"errors"

	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Auth errors are mapped in the auth package interceptor.
// Everything else is mapped here:
//   - schema parse, bad JSON and bad names: INVALID_ARGUMENT
//   - missing rule sets: NOT_FOUND
//   - database errors: UNAVAILABLE
//   - context timeouts: DEADLINE_EXCEEDED

// errMissingField reports a required request field that is absent or empty.
var errMissingField = errors.New("missing required field")

// toStatus converts a domain error into a gRPC status error. A
// *rules.SchemaParseError carries its location as a Struct detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var spe *rules.SchemaParseError
	switch {
	case errors.As(err, &spe):
		st := status.New(codes.InvalidArgument, err.Error())
		detail, derr := structpb.NewStruct(map[string]interface{}{
			"location": spe.Location,
			"message":  spe.Msg,
		})
		if derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
		return st.Err()
	case errors.Is(err, errMissingField),
		errors.Is(err, types.ErrSchemaParse),
		errors.Is(err, types.ErrInvalidJSON),
		errors.Is(err, types.ErrDocumentTooLarge),
		errors.Is(err, types.ErrEmptyName),
		errors.Is(err, types.ErrNameTooLong),
		errors.Is(err, types.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, types.ErrStorage):
		return status.Error(codes.Unavailable, "rule store unavailable")
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ParseErrorLocation extracts the schema location from a status returned
// for a *rules.SchemaParseError. ok is false for other errors.
func ParseErrorLocation(err error) (location string, ok bool) {
	st, isStatus := status.FromError(err)
	if !isStatus || st.Code() != codes.InvalidArgument {
		return "", false
	}
	for _, d := range st.Details() {
		if s, isStruct := d.(*structpb.Struct); isStruct {
			if loc, has := s.GetFields()["location"]; has {
				return loc.GetStringValue(), true
			}
		}
	}
	return "", false
}
