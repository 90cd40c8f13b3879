package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/Strob0t/democrm/internal/tenancy"
)

// TenantOptions configures the Tenant middleware.
type TenantOptions struct {
	// HintHeader names the request header carrying the company hint.
	HintHeader string
	// BaseDomain and SubdomainHints enable hints taken from the Host
	// header when HintHeader is absent.
	BaseDomain     string
	SubdomainHints bool
	// SkipPaths are served without resolution or binding.
	SkipPaths []string
	// OnError writes the response for resolution and binding failures.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Tenant resolves the request's company hint and runs the rest of the
// chain bound to the resulting partition. Requests with an unknown hint
// are rejected before any handler runs.
func Tenant(resolver *tenancy.Resolver, binder *tenancy.Binder, opts TenantOptions, log *slog.Logger) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ctx := tenancy.WithResolveMemo(r.Context())
			hint := TenantHint(r, opts)

			t, err := resolver.ResolveTenant(ctx, hint)
			if err != nil {
				log.WarnContext(ctx, "tenant resolution failed", "hint", hint, "error", err)
				onError(w, r, err)
				return
			}

			part := tenancy.Public
			if t != nil {
				part = tenancy.Partition(t.SchemaName)
				ctx = tenancy.ContextWithTenant(ctx, t)
			}

			tw := &trackingWriter{ResponseWriter: w}
			err = binder.WithPartition(ctx, part, func(ctx context.Context) error {
				next.ServeHTTP(tw, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				log.ErrorContext(ctx, "partition binding failed", "partition", part, "error", err)
				if !tw.wrote {
					onError(w, r, err)
				}
			}
		})
	}
}

// TenantHint returns the company hint of r: the hint header when present,
// otherwise the subdomain under BaseDomain if enabled, otherwise "".
func TenantHint(r *http.Request, opts TenantOptions) string {
	if h := strings.TrimSpace(r.Header.Get(opts.HintHeader)); h != "" {
		return h
	}
	if !opts.SubdomainHints || opts.BaseDomain == "" {
		return ""
	}

	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	suffix := "." + strings.Trim(strings.ToLower(opts.BaseDomain), ".")
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	return strings.TrimSuffix(host, suffix)
}

// trackingWriter records whether the handler started a response.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
