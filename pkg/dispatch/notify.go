package dispatch

import (
	"context"
	"fmt"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
	"github.com/rentease/admin/pkg/push"
	"github.com/rentease/admin/pkg/tasks"
)

type recipient struct {
	profileID string
	token     string
	// lookup means the push token must be read from the profiles table.
	lookup  bool
	message string
}

func recipients(n *models.Notice, rec models.Record, approved bool) []recipient {
	verb := "rejected"
	if approved {
		verb = "approved"
	}
	name := rec.Text("name")

	var out []recipient
	for _, o := range n.Owners {
		pid := rec.Text(o.Field)
		if pid == "" {
			continue
		}
		r := recipient{profileID: pid, message: fmt.Sprintf(o.Message, name, verb)}
		if o.Profile != "" {
			r.token = rec.Text(o.Profile + ".expo_push_token")
		} else {
			r.lookup = true
		}
		out = append(out, r)
	}
	return out
}

// notify queues one notifications insert for all owners and one push per
// owner with a push token.
func (d *Dispatcher) notify(res models.Resource, rec models.Record, approved bool) {
	if d.queue == nil {
		return
	}
	n := res.Notice
	title := n.Title(approved)
	rcpts := recipients(n, rec, approved)
	if len(rcpts) == 0 {
		return
	}

	now := d.now()
	rows := make([]map[string]any, 0, len(rcpts))
	for _, r := range rcpts {
		rows = append(rows, models.Notification{
			ProfileID: r.profileID,
			Type:      n.Type(approved),
			Title:     title,
			Message:   r.message,
			CreatedAt: now,
		}.Row())
	}
	d.queue.Enqueue(tasks.Task{
		Name: "notifications:" + res.Name,
		Run: func(ctx context.Context) error {
			_, err := d.ds.Insert(ctx, models.TableNotifications, rows)
			return err
		},
	})

	for _, r := range rcpts {
		r := r
		if r.token == "" && !r.lookup {
			continue
		}
		d.queue.Enqueue(tasks.Task{
			Name: "push:" + res.Name,
			Run: func(ctx context.Context) error {
				token := r.token
				if r.lookup {
					var err error
					if token, err = d.pushToken(ctx, r.profileID); err != nil || token == "" {
						return err
					}
				}
				return d.push.Send(ctx, push.Message{Token: token, Title: title, Message: r.message})
			},
		})
	}
}

func (d *Dispatcher) pushToken(ctx context.Context, profileID string) (string, error) {
	rows, err := d.ds.Select(ctx, models.TableProfiles, backend.Query{
		Columns: []string{"expo_push_token"},
		Where:   map[string]any{"id": profileID},
	})
	if err != nil {
		return "", fmt.Errorf("fetch push token: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Text("expo_push_token"), nil
}
