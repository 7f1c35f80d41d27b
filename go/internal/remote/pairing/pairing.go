package pairing

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length in pixels
const DefaultQRSize = 256

// URL builds the link that joins the display's session: <site>/?connection=<id>.
// Opening it adopts id as the opener's own session id, so the opener becomes another
// display of the same session. Controlling it takes a control id instead.
func URL(site string, id session.ID) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", session.ErrInvalidID, id)
	}

	u, err := url.Parse(site)
	if err != nil {
		return "", fmt.Errorf("parse site url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("site url %q must be absolute", site)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set(session.PairingQueryParam, id.String())
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// PNG renders link as a QR code image
func PNG(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	// Medium error correction keeps the code small enough for overlays
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// Display prints the pairing link as a terminal QR code with a plain-text fallback
func Display(w io.Writer, link string, id session.ID) {
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Error generating QR code: %v\n", err)
		fmt.Fprintf(w, "Open %s to join this session.\n", link)
		return
	}

	rule := strings.Repeat("=", 43)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "          OPEN TO JOIN THIS SESSION")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "")
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintln(w, strings.Repeat("-", 43))
	fmt.Fprintf(w, "  Session: %s\n", id)
	fmt.Fprintf(w, "  Link:    %s\n", link)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "")
}
