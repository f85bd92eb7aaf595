package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/scanpoint/internal/imaging"
	"github.com/erazemk/scanpoint/internal/model"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/store"
)

// scannerData is what the scanner panel template renders.
type scannerData struct {
	// Path is the URL prefix the panel posts to, e.g. /checkinout.
	Path  string
	State string
	Hint  string
	Busy  bool
}

func panelData(path string, p *Panel, busy bool) scannerData {
	hint := p.Hint()
	if err := p.Scanner.Err(); err != nil && hint == "" {
		hint = acquisitionMessage(err)
	}
	return scannerData{
		Path:  path,
		State: p.Scanner.State().String(),
		Hint:  hint,
		Busy:  busy,
	}
}

// submitScan feeds a scan form into p: a photo in camera mode, typed or
// wedge input in device mode. It returns whether a code was acquired.
func submitScan(w http.ResponseWriter, r *http.Request, p *Panel) bool {
	if p.Scanner.State() == scanner.CameraActive {
		r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
		file, _, err := r.FormFile("photo")
		if err != nil {
			p.setHint("Take or choose a photo of the code.")
			return false
		}
		defer file.Close()

		img, err := imaging.DecodeUpload(file)
		if err != nil {
			slog.Warn("rejected scan photo", "error", err)
			p.setHint("The photo could not be read. Use a JPEG or PNG image.")
			return false
		}
		return p.SubmitPhoto(img) == nil
	}

	err := p.SubmitCode(r.FormValue("code"))
	if errors.Is(err, scanner.ErrWrongState) {
		p.setHint("Choose camera or scanner device first.")
	}
	return err == nil
}

// record appends to the activity log. Failures are logged only; the
// operation itself already happened.
func (s *Server) record(ctx context.Context, sess *store.Session, action, subject string, err error) {
	a := &model.Activity{
		Username: sess.Username,
		Action:   action,
		Subject:  subject,
		Outcome:  model.OutcomeOK,
	}
	if err != nil {
		a.Outcome = model.OutcomeFailed
		a.Message = err.Error()
	}
	if rerr := store.RecordActivity(ctx, s.DB, a); rerr != nil {
		slog.Error("failed to record activity", "action", action, "error", rerr)
	}
}
