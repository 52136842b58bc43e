package briefing

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-briefing/internal/model"
)

// FetchCommunications returns up to maxResults messages exchanged with email
// in the lookbackDays before now, newest first as the mailbox returns them.
// maxResults 0 makes no call. A mailbox failure yields zero records and the
// error; retries belong to the mailbox client.
func FetchCommunications(ctx context.Context, mb Mailbox, email string, lookbackDays, maxResults int, now time.Time) Outcome[[]model.CommunicationRecord] {
	if maxResults <= 0 || email == "" {
		return Ok([]model.CommunicationRecord{})
	}

	since := now.AddDate(0, 0, -lookbackDays)
	recs, err := mb.Search(ctx, email, since, maxResults)
	if err != nil {
		return Outcome[[]model.CommunicationRecord]{
			Value: []model.CommunicationRecord{},
			Err:   eris.Wrapf(err, "fetch communications for %s", email),
		}
	}
	if len(recs) > maxResults {
		recs = recs[:maxResults]
	}
	if recs == nil {
		recs = []model.CommunicationRecord{}
	}
	return Ok(recs)
}
