package whatsapp

import (
	"context"
	"encoding/base64"
	"errors"
	"runtime"
	"strings"

	qrCode "github.com/skip2/go-qrcode"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
)

var clientProxyURL string

// NewDatastore opens the whatsmeow credential container. The same database
// holds the gateway's own tables; the container owns only the key material.
func NewDatastore(ctx context.Context) (*sqlstore.Container, error) {
	driver, dsn, err := DatastoreConfig()
	if err != nil {
		return nil, err
	}

	log.Print(nil).Info("Initializing WhatsApp datastore with driver=" + driver)

	datastore, err := sqlstore.New(ctx, driver, dsn, nil)
	if err != nil {
		return nil, err
	}

	clientProxyURL = env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", "")
	return datastore, nil
}

// DatastoreConfig resolves the normalized driver name and DSN from the
// environment, shared between the container and the gateway's own store.
func DatastoreConfig() (string, string, error) {
	dbType, err := env.GetEnvString("WHATSAPP_DATASTORE_TYPE")
	if err != nil {
		return "", "", err
	}
	dbURI, err := env.GetEnvString("WHATSAPP_DATASTORE_URI")
	if err != nil {
		return "", "", err
	}
	driver := normalizeDatastoreDriver(dbType)
	if driver != "pgx" {
		return "", "", errors.New("unsupported datastore driver: " + driver)
	}
	return driver, normalizeDatastoreDSN(driver, dbURI), nil
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}

// NewClient builds a transport client for one device. Automatic reconnection
// is disabled: the lifecycle supervisor owns the retry policy.
func NewClient(device *store.Device) *whatsmeow.Client {
	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	if major, err := env.GetEnvInt("WHATSAPP_VERSION_MAJOR"); err == nil {
		store.DeviceProps.Version.Primary = proto.Uint32(uint32(major))
	}
	if minor, err := env.GetEnvInt("WHATSAPP_VERSION_MINOR"); err == nil {
		store.DeviceProps.Version.Secondary = proto.Uint32(uint32(minor))
	}
	if patch, err := env.GetEnvInt("WHATSAPP_VERSION_PATCH"); err == nil {
		store.DeviceProps.Version.Tertiary = proto.Uint32(uint32(patch))
	}

	client := whatsmeow.NewClient(device, nil)

	if len(clientProxyURL) > 0 {
		client.SetProxyAddress(clientProxyURL)
	}

	client.EnableAutoReconnect = false
	client.AutoTrustIdentity = true

	return client
}

// DeviceForNumber finds the persisted device whose linked identity matches the
// sanitized number, nil when no such device exists.
func DeviceForNumber(ctx context.Context, container *sqlstore.Container, number string) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		if device.ID != nil && device.ID.User == number {
			return device, nil
		}
	}
	return nil, nil
}

// DeleteDeviceForNumber purges any stale working copy for a number. Called
// before a fresh pairing when no eligibility record exists.
func DeleteDeviceForNumber(ctx context.Context, container *sqlstore.Container, number string) error {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return err
	}
	for _, device := range devices {
		if device.ID != nil && device.ID.User == number {
			if err := container.DeleteDevice(ctx, device); err != nil {
				return err
			}
		}
	}
	return nil
}

// RequestPairingCode asks the transport for a phone-pairing code. The socket
// must already be connected and past its ready sub-state.
func RequestPairingCode(ctx context.Context, client *whatsmeow.Client, number string) (string, error) {
	return client.PairPhone(ctx, number, true, whatsmeow.PairClientChrome, "Chrome ("+runtime.GOOS+")")
}

// GenerateQR drains the QR channel until it delivers a scannable code and
// returns it as a base64 PNG, with the code's validity window in seconds.
func GenerateQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) (string, int, error) {
	for {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return "", 0, errors.New("whatsapp qr channel closed before delivering a code")
			}
			switch {
			case evt.Event == "code":
				qrPNG, err := qrCode.Encode(evt.Code, qrCode.Medium, 256)
				if err != nil {
					return "", 0, err
				}
				return base64.StdEncoding.EncodeToString(qrPNG), int(evt.Timeout.Seconds()), nil
			case evt.Event == whatsmeow.QRChannelSuccess.Event:
				return "", 0, errors.New("whatsapp client is already paired")
			case evt.Event == whatsmeow.QRChannelTimeout.Event:
				return "", 0, errors.New("whatsapp qr channel timed out")
			case evt.Event == "error":
				if evt.Error != nil {
					return "", 0, evt.Error
				}
				return "", 0, errors.New("whatsapp qr channel reported an unspecified error")
			}
		}
	}
}
