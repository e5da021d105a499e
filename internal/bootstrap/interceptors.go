package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/fetch"
	"github.com/felixgeelhaar/sessionbridge/internal/identity"
	"github.com/felixgeelhaar/sessionbridge/internal/ipc"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// NativeAPIDisabledCode is the frontend API error code for instances that do
// not accept native clients.
const NativeAPIDisabledCode = "native_api_disabled"

// NativeAPIDashboardURL is where the native API is switched on.
const NativeAPIDashboardURL = "https://dashboard.clerk.com/last-active?path=native-applications"

var (
	diagnosticTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	diagnosticHint  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	errMissingHost = errors.New(errors.ErrCodeHostHandshake, "no host configured").
			WithSuggestion("Set IPCURL or provide a Host and Bus")
)

var errReservedLabel = errors.New(errors.ErrCodeHostHandshake, "window label "+snapshot.HostSource+" is reserved for the host").
	WithSuggestion("Pick another window label")

// beforeRequest makes every frontend API request a native one that leaves
// through the host.
func (b *Bridge) beforeRequest(ctx context.Context, req *identity.RequestInit) error {
	req.Credentials = identity.CredentialsOmit
	req.SetQuery("_is_native", "1")

	header, err := b.host.AuthorizationHeader(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(ipc.AuthorizationHeaderKey, header)
	req.Header.Set(fetch.MarkerMobile, "1")
	req.Header.Set(fetch.MarkerNoOrigin, "1")
	req.Header.Set(fetch.MarkerTauriFetch, "1")
	return nil
}

// afterResponse persists rotated authorization headers and surfaces a
// disabled native API.
func (b *Bridge) afterResponse(ctx context.Context, _ *identity.RequestInit, resp *identity.Response) error {
	if resp == nil {
		b.slot.Get().Warn(log.Params{}, "no response in frontend api call")
		return nil
	}

	if header := resp.Header.Get(ipc.AuthorizationHeaderKey); header != "" {
		if err := b.host.SetAuthorizationHeader(ctx, header); err != nil {
			return err
		}
	}

	if resp.Payload.FirstErrorCode() == NativeAPIDisabledCode {
		WriteNativeAPIDisabled(b.cfg.Diagnostics)
	}
	return nil
}

// WriteNativeAPIDisabled prints the native API diagnostic to w.
func WriteNativeAPIDisabled(w io.Writer) {
	fmt.Fprintln(w, diagnosticTitle.Render("The Native API is disabled for this instance."))
	fmt.Fprintln(w, diagnosticHint.Render("Go to Clerk Dashboard > Configure > Native applications to enable it."))
	fmt.Fprintln(w, diagnosticHint.Render("Or, navigate here: "+NativeAPIDashboardURL))
}

type unavailableTransport struct{}

func (unavailableTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New(errors.ErrCodeFetchMediated, "no host connection for mediated requests")
}
