// Package rpcstatus turns mapper and store errors into gRPC statuses.
package rpcstatus

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/ormpb/errs"
)

// Code returns the gRPC code for err.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, errs.ErrRejected),
		errors.Is(err, errs.ErrNullValue),
		errors.Is(err, errs.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, errs.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, errs.ErrConfig),
		errors.Is(err, errs.ErrUnregistered),
		errors.Is(err, errs.ErrNoMessageType):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// FromError converts err to a status error. Internal errors keep their
// text out of the status message. An invalid field value carries a
// BadRequest detail naming the field.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := Code(err)
	if code == codes.Internal {
		return status.Error(codes.Internal, "internal error")
	}

	st := status.New(code, err.Error())
	var fe *errs.FieldError
	if code == codes.InvalidArgument && errors.As(err, &fe) {
		detailed, derr := st.WithDetails(&errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{
				Field:       fe.Entity + "." + fe.Field,
				Description: fe.Err.Error(),
			}},
		})
		if derr == nil {
			st = detailed
		}
	}
	return st.Err()
}

// UnaryServerInterceptor converts handler errors with FromError.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, FromError(err)
		}
		return resp, nil
	}
}
