// ABOUTME: Matrix delivery for rendered feed posts using mautrix
// ABOUTME: Handles login, optional encryption and sending formatted messages to rooms

package matrix

import (
	"context"
	"fmt"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-feeds/internal/config"
	"github.com/2389/coven-feeds/internal/render"
)

const deviceDisplayName = "coven-feeds"

// Deliverer posts messages to Matrix rooms.
type Deliverer struct {
	client *mautrix.Client
	crypto *CryptoManager
	logger *slog.Logger
}

// New creates a Deliverer for the configured account. When no access token
// is configured it logs in with username and password. When a recovery key
// is set, end-to-end encryption is enabled with its store under dataDir.
func New(ctx context.Context, cfg config.MatrixConfig, dataDir string, logger *slog.Logger) (*Deliverer, error) {
	logger = logger.With("component", "matrix")

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	d := newDeliverer(client, logger)
	if err := d.authenticate(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.RecoveryKey != "" {
		d.crypto, err = SetupCrypto(ctx, client, client.UserID.String(), cfg.RecoveryKey, dataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up encryption: %w", err)
		}
	} else {
		logger.Info("encryption disabled (no recovery key)")
	}

	return d, nil
}

func newDeliverer(client *mautrix.Client, logger *slog.Logger) *Deliverer {
	return &Deliverer{client: client, logger: logger}
}

func (d *Deliverer) authenticate(ctx context.Context, cfg config.MatrixConfig) error {
	if cfg.AccessToken != "" {
		resp, err := d.client.Whoami(ctx)
		if err != nil {
			return fmt.Errorf("validating access token: %w", err)
		}
		d.client.UserID = resp.UserID
		d.client.DeviceID = resp.DeviceID
		d.logger.Info("using access token", "user", resp.UserID, "device", resp.DeviceID)
		return nil
	}

	resp, err := d.client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: cfg.Username,
		},
		Password:                 cfg.Password,
		InitialDeviceDisplayName: deviceDisplayName,
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}
	d.logger.Info("logged in", "user", resp.UserID, "device", resp.DeviceID)
	return nil
}

// UserID returns the account the deliverer posts as.
func (d *Deliverer) UserID() string {
	return d.client.UserID.String()
}

// Deliver sends a rendered post to a room as m.text.
func (d *Deliverer) Deliver(ctx context.Context, roomID string, msg render.Message) error {
	return d.send(ctx, roomID, messageContent(event.MsgText, msg))
}

// Notify sends a plain operator notice to a room as m.notice.
func (d *Deliverer) Notify(ctx context.Context, roomID, text string) error {
	return d.send(ctx, roomID, messageContent(event.MsgNotice, render.Message{Body: text}))
}

func (d *Deliverer) send(ctx context.Context, roomID string, content *event.MessageEventContent) error {
	resp, err := d.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content)
	if err != nil {
		return fmt.Errorf("sending to %s: %w", roomID, err)
	}
	d.logger.Debug("message sent", "room", roomID, "event_id", resp.EventID)
	return nil
}

// Close releases the encryption store, if any.
func (d *Deliverer) Close() error {
	if d.crypto != nil {
		return d.crypto.Close()
	}
	return nil
}

func messageContent(msgType event.MessageType, msg render.Message) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: msgType,
		Body:    msg.Body,
	}
	if msg.HTML != "" {
		content.Format = event.FormatHTML
		content.FormattedBody = msg.HTML
	}
	return content
}
