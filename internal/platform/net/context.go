// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keyTenantID   ctxKey = "tenant_id"
	keyCaseID     ctxKey = "case_id"
	keyOperatorID ctxKey = "operator_id"
)

// WithRequest annotates context with common request scoped ids
func WithRequest(ctx context.Context, reqID, tenantID string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if tenantID != "" {
		ctx = context.WithValue(ctx, keyTenantID, tenantID)
	}
	return ctx
}

// WithCase annotates context with the case id a request operates on
func WithCase(ctx context.Context, caseID string) context.Context {
	if caseID != "" {
		ctx = context.WithValue(ctx, keyCaseID, caseID)
	}
	return ctx
}

// WithOperator annotates context with the authenticated operator id
func WithOperator(ctx context.Context, operatorID string) context.Context {
	if operatorID != "" {
		ctx = context.WithValue(ctx, keyOperatorID, operatorID)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// TenantID returns the tenant id on the context if present
func TenantID(ctx context.Context) string {
	if v, ok := ctx.Value(keyTenantID).(string); ok {
		return v
	}
	return ""
}

// OperatorID returns the operator id on the context if present
func OperatorID(ctx context.Context) string {
	if v, ok := ctx.Value(keyOperatorID).(string); ok {
		return v
	}
	return ""
}

// CaseID returns the case id on the context if present
func CaseID(ctx context.Context) string {
	if v, ok := ctx.Value(keyCaseID).(string); ok {
		return v
	}
	return ""
}
