// Package hrapi is a client for the HRthis employees API.
//
// Responses are normalised into [Employee]: ids may arrive as numbers or
// under employee_id, full_name is derived from first and last name when
// absent, and is_active follows the status.
//
// Non-2xx responses become [*APIError]. errors.Is matches [ErrNotFound]
// for 404 and [ErrUnauthorized] for 401/403. [Retryable] marks client
// errors as permanent so request controllers only retry 408, 429, 5xx
// and transport failures:
//
//	api, err := hrapi.New(cfg.BaseURL, hrapi.WithToken(cfg.Token), hrapi.WithRateLimit(10))
//	emp, err := api.GetEmployee(ctx, "42")
//	if errors.Is(err, hrapi.ErrNotFound) {
//	    ...
//	}
package hrapi
