package httpkit

import (
	"net/http"

	perrs "custodian/internal/platform/errors"
	pnet "custodian/internal/platform/net"
)

// Operator returns the authenticated operator id from the request context
func Operator(r *http.Request) (string, error) {
	oid := pnet.OperatorID(r.Context())
	if oid == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return oid, nil
}

// Tenant returns the authenticated tenant id from the request context
func Tenant(r *http.Request) (string, error) {
	tid := pnet.TenantID(r.Context())
	if tid == "" {
		return "", perrs.Unauthorizedf("missing tenant scope")
	}
	return tid, nil
}
