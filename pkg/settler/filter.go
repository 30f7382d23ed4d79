package settler

import (
	"time"

	"github.com/solverhq/solana-settler/pkg/models"
)

// maxIntentAge bounds how stale a won intent may be before the solver
// declines to settle it.
const maxIntentAge = 1 * time.Hour

// filterViableIntents drops intents that should not reach a worker: ones
// already queued or in flight, malformed ones, stale ones, and ones whose
// destination chain has an open circuit.
func (s *Service) filterViableIntents(intents []models.Intent) []models.Intent {
	viable := []models.Intent{}
	for _, intent := range intents {
		if s.isActive(intent.ID) {
			s.logger.Debug("Skipping intent %s: already queued or in flight", intent.ID)
			continue
		}

		if err := intent.Validate(s.config.SupportedChains); err != nil {
			s.logger.Error("Skipping intent %s: %v", intent.ID, err)
			continue
		}

		if !intent.CreatedAt.IsZero() && time.Since(intent.CreatedAt) > maxIntentAge {
			s.logger.Info("Skipping intent %s: created %v ago, past the staleness bound",
				intent.ID, time.Since(intent.CreatedAt).Round(time.Second))
			continue
		}

		if cb, ok := s.breakers[intent.DestinationChain]; ok && cb.IsEnabled() && cb.IsOpen() {
			s.logger.InfoWithDomain(intent.DestinationChain,
				"Skipping intent %s: circuit open for %s", intent.ID, intent.DestinationChain)
			continue
		}

		viable = append(viable, intent)
	}
	return viable
}
