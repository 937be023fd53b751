/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the address a QR code for roomID points at, derived from the
// request so that it works behind a reverse proxy.
func joinURL(cfg *Config, r *http.Request, roomID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     cfg.prefix + "/",
		RawQuery: url.Values{"room": {roomID}}.Encode(),
	}

	return u.String()
}

// serveQR renders a PNG QR code for joining a live room.
func serveQR(cfg *Config, coord *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := normalizeRoomID(ps.ByName("room"))

		if _, err := coord.rooms.get(roomID); err != nil {
			securityHeaders(cfg, w)
			writeError(w, err)
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, roomID), qrcode.Medium, qrSize)
		if err != nil {
			securityHeaders(cfg, w)
			writeError(w, wrapError(newError(KindInternal, CodeInternal, "qr generation failed"), err))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		_, _ = w.Write(png)

		logf(cfg, "SERVE: QR code for room %s (%s) to %s", roomID, humanReadableSize(int64(len(png))), realIP(r))
	}
}
