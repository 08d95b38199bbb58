// ABOUTME: End-to-end encryption for the feed deliverer
// ABOUTME: Keeps a per-user SQLite crypto store and verifies the device with a recovery key

package matrix

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
)

// CryptoManager owns the crypto helper attached to a client.
type CryptoManager struct {
	helper *cryptohelper.CryptoHelper
	logger *slog.Logger
}

// SetupCrypto enables encryption on client. The crypto database lives in
// dataDir and is reset when it belongs to a different device. A failed
// recovery key verification is logged; posting still works unverified.
func SetupCrypto(ctx context.Context, client *mautrix.Client, userID, recoveryKey, dataDir string, logger *slog.Logger) (*CryptoManager, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := cryptoDBPath(dataDir, userID)
	logger.Info("setting up encryption", "db", dbPath)

	if err := resetOnDeviceChange(dbPath, client.DeviceID.String(), logger); err != nil {
		return nil, err
	}

	helper, err := cryptohelper.NewCryptoHelper(client, deriveStoreKey(userID), dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}
	client.Crypto = helper

	cm := &CryptoManager{helper: helper, logger: logger}
	if recoveryKey != "" {
		if err := cm.verify(ctx, recoveryKey); err != nil {
			logger.Warn("failed to verify with recovery key", "error", err)
		} else {
			logger.Info("device verified with recovery key")
		}
	}
	return cm, nil
}

func (cm *CryptoManager) verify(ctx context.Context, recoveryKey string) error {
	machine := cm.helper.Machine()
	if machine == nil {
		return errors.New("crypto machine not initialized")
	}
	if err := machine.VerifyWithRecoveryKey(ctx, recoveryKey); err != nil {
		return fmt.Errorf("recovery key verification failed: %w", err)
	}
	return nil
}

// Close closes the crypto store.
func (cm *CryptoManager) Close() error {
	if cm.helper != nil {
		return cm.helper.Close()
	}
	return nil
}

func cryptoDBPath(dataDir, userID string) string {
	return filepath.Join(dataDir, fmt.Sprintf("feeds-crypto-%s.db", slugify(userID)))
}

// slugify maps a Matrix user ID to a file name fragment:
// @feeds:matrix.org becomes feeds_matrix.org.
func slugify(userID string) string {
	s := userID
	if len(s) > 0 && s[0] == '@' {
		s = s[1:]
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			out = append(out, c)
		case c == ':':
			out = append(out, '_')
		}
	}
	return string(out)
}

// deriveStoreKey returns the 32-byte pickle key for userID's crypto store.
func deriveStoreKey(userID string) []byte {
	h := sha256.Sum256([]byte("coven-feeds-crypto:" + userID))
	return h[:]
}

// resetOnDeviceChange deletes the crypto database when it was created for
// another device. It runs before the helper opens the database.
func resetOnDeviceChange(dbPath, deviceID string, logger *slog.Logger) error {
	mismatch, err := deviceMismatch(dbPath, deviceID)
	if err != nil {
		logger.Debug("could not check device ID", "error", err)
		return nil
	}
	if !mismatch {
		return nil
	}

	logger.Warn("device ID changed, resetting crypto database", "device", deviceID)
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing old crypto database: %w", err)
	}
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")
	return nil
}

// deviceMismatch reports whether the database at dbPath holds an account
// for a device other than deviceID. A missing database or account is not a
// mismatch.
func deviceMismatch(dbPath, deviceID string) (bool, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRow("SELECT device_id FROM crypto_account LIMIT 1").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != deviceID, nil
}
