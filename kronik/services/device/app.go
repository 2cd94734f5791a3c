package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kronik/kronik/utils/logging"
	waitutil "kronik/kronik/utils/wait"

	"go.uber.org/zap"
)

// SupportedApp enumerates the apps the controller knows how to drive.
type SupportedApp int

const (
	TikTok SupportedApp = iota
)

// SupportedApps lists every SupportedApp value.
func SupportedApps() []SupportedApp {
	return []SupportedApp{TikTok}
}

func (a SupportedApp) PackageID() string {
	switch a {
	case TikTok:
		return "com.zhiliaoapp.musically"
	default:
		return ""
	}
}

func (a SupportedApp) DisplayName() string {
	switch a {
	case TikTok:
		return "TikTok"
	default:
		return fmt.Sprintf("SupportedApp(%d)", int(a))
	}
}

// AppDriver is the subset of the device client used to manage apps.
type AppDriver interface {
	ActivateApp(ctx context.Context, appID string) error
	IsAppInstalled(ctx context.Context, appID string) (bool, error)
	CurrentPackage(ctx context.Context) (string, error)
}

// OpenApp activates app and polls until it is in the foreground or wait elapses.
func OpenApp(ctx context.Context, d AppDriver, app SupportedApp, wait time.Duration) error {
	log := logging.Named("device")
	log.Info("launching app", zap.String("app", app.DisplayName()))
	if err := d.ActivateApp(ctx, app.PackageID()); err != nil {
		return fmt.Errorf("failed to launch %s: %w", app.DisplayName(), err)
	}

	var current string
	foreground := func(ctx context.Context) bool {
		pkg, err := d.CurrentPackage(ctx)
		if err != nil {
			return false
		}
		current = pkg
		return strings.Contains(strings.ToLower(pkg), strings.ToLower(app.PackageID()))
	}
	if err := waitutil.Until(ctx, 500*time.Millisecond, wait, foreground); err != nil {
		return fmt.Errorf("failed to launch %s (current package %q): %w", app.DisplayName(), current, err)
	}
	log.Debug("app in foreground", zap.String("app", app.DisplayName()))
	return nil
}

// VerifyAppInstalled reports false on any device error.
func VerifyAppInstalled(ctx context.Context, d AppDriver, app SupportedApp) bool {
	installed, err := d.IsAppInstalled(ctx, app.PackageID())
	if err != nil {
		logging.ErrorLogger.Error("failed to check app install",
			zap.String("app", app.DisplayName()), zap.Error(err))
		return false
	}
	return installed
}

// MissingApps returns the display names of supported apps not installed.
func MissingApps(ctx context.Context, d AppDriver) []string {
	var missing []string
	for _, app := range SupportedApps() {
		if !VerifyAppInstalled(ctx, d, app) {
			missing = append(missing, app.DisplayName())
		}
	}
	return missing
}
