package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/bucketlens/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error of the given kind.
// The kind is fixed by the operation (listing or signing); the message names
// the failure class and the SDK error, which carries the remote's own
// message, is kept as the cause.
func mapError(err error, kind errs.ErrKind, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(kind, msg+": storage request timed out", err)
	}

	// S3-protocol errors arrive as a typed ErrorResponse
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket":
			return errs.Wrap(kind, msg+": bucket does not exist", err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(kind, msg+": access denied", err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
			return errs.Wrap(kind, msg+": invalid name", err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(kind, msg+": storage request timed out", err)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(kind, msg+": not found", err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(kind, msg+": access denied", err)
		}
	}

	return errs.Wrap(kind, msg, err)
}
