// Package telephony selects and constructs the session variant used to
// drive one call path: real calls through the external telephony backend,
// or simulated replay of a canned flow.
package telephony

import (
	"fmt"

	"github.com/dialmap/dialmap/internal/config"
	"github.com/dialmap/dialmap/internal/telephony/backend"
	"github.com/dialmap/dialmap/internal/telephony/simulated"
	"github.com/dialmap/dialmap/pkg/models"
)

// Factory builds a fresh session per path replay. The crawl engine re-dials
// from the root for every frame, so sessions are never reused.
type Factory func(entryPoint, inputType string) (models.Session, error)

// NewFactory returns a Factory bound to the given telephony config.
// Text and simulated input types always get the simulated variant; every
// other entry point shape is routed to the real backend, which requires a
// configured backend URL.
func NewFactory(cfg config.TelephonyConfig) Factory {
	return func(entryPoint, inputType string) (models.Session, error) {
		switch inputType {
		case models.InputTypeText, models.InputTypeSimulated:
			return simulated.NewSession(entryPoint, simulated.DefaultCatalog()), nil
		default:
			if cfg.BackendURL == "" {
				return nil, fmt.Errorf(
					"%w: set TELEPHONY_BACKEND_URL to place real calls, or use input_type text/simulated",
					ErrBackendNotConfigured)
			}
			return backend.NewSession(cfg.BackendURL, entryPoint, cfg.Timeout), nil
		}
	}
}
