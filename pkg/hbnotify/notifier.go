// Delivery channels for alert and recovery messages
package hbnotify

import (
	"context"
	"github.com/function61/gokit/logex"
	"log"
)

// Messages are plain text with `code spans` around slugs. Channels with markup of their
// own are responsible for escaping.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// writes messages to the log instead of delivering them. for local development.
type LogNotifier struct {
	logl *logex.Leveled
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logex.Levels(logger)}
}

func (l *LogNotifier) Send(_ context.Context, text string) error {
	l.logl.Info.Printf("notification: %s", text)
	return nil
}
