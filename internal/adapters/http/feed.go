package http

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const mjpegBoundary = "frame"

// selfFeed serves the local camera as MJPEG from its own device handle,
// independent of the publisher.
func (h *handlers) selfFeed(c *gin.Context) {
	if !h.orch.Running() || h.media.Open == nil || h.media.Encoder == nil {
		c.String(http.StatusForbidden, "Not joined.")
		return
	}
	sf := h.cfg.SelfFeed
	dev, err := h.media.Open(sf.Width, sf.Height)
	if err != nil {
		log.Error().Err(err).Str("module", "capture").Msg("cannot open device for self view")
		c.String(http.StatusInternalServerError, "Cannot open camera.")
		return
	}
	defer dev.Close()

	quality := max(h.cfg.Media.Quality-10, 1)
	fps := max(sf.FPS, 1)

	mw := multipart.NewWriter(c.Writer)
	_ = mw.SetBoundary(mjpegBoundary)
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	header := textproto.MIMEHeader{"Content-Type": {"image/jpeg"}}
	for h.orch.Running() {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
		img, err := dev.Read()
		if err != nil {
			log.Warn().Err(err).Str("module", "capture").Msg("self view read failed")
			continue
		}
		data, err := h.media.Encoder.Encode(img, quality)
		if err != nil {
			log.Warn().Err(err).Str("module", "capture").Msg("self view encode failed")
			continue
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			return
		}
		if _, err := part.Write(data); err != nil {
			return
		}
		c.Writer.Flush()
	}
}
