package testutil

import (
	"net/http"
	"time"

	id "clubhouse/pkg/domain"
	"clubhouse/pkg/requestcontext"
)

// WithMemberID marks the request as authenticated for memberID, the way the
// member auth middleware would.
func WithMemberID(req *http.Request, memberID id.MemberID) *http.Request {
	return req.WithContext(requestcontext.WithMemberID(req.Context(), memberID))
}

// WithTime pins the request time.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
