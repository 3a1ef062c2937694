package gossip

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// HTTPHandler returns the counterpart to HTTPTransport.Send: an
// http.Handler a replica mounts at /gossip/deltas to receive a peer's batch
// and merge each delta into the owning shard via ApplyInbound.
func (a *Actor) HTTPHandler(log *logrus.Entry) http.Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "gossip.handler")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var batch Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, "bad batch", http.StatusBadRequest)
			return
		}
		for _, delta := range batch.Deltas {
			if err := a.ApplyInbound(r.Context(), delta); err != nil {
				log.WithError(err).WithField("key", delta.Key).Warn("failed to apply inbound delta")
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}
