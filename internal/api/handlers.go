package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/IngestDrop/internal/auth"
	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/lifecycle"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 1 << 14

func actor(r *http.Request) auth.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+multipartOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "missing file part")
			return
		}
		s.fail(w, r, &ingest.ValidationError{Reason: "failed to read upload: " + err.Error()})
		return
	}
	defer part.Close()
	data, err := readPart(part, s.maxBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.jobs.Upload(r.Context(), actor(r), part.FileName(), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// readPart reads at most one byte past limit so the size check can report
// an oversized file instead of silently truncating it.
func readPart(part *multipart.Part, limit int64) ([]byte, error) {
	var reader io.Reader = part
	if limit > 0 {
		reader = io.LimitReader(part, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &ingest.ValidationError{Reason: "File exceeds maximum allowed size"}
		}
		return nil, &ingest.ValidationError{Reason: "failed to read upload: " + err.Error()}
	}
	return data, nil
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context(), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "total": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), actor(r), chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Reprocess(r.Context(), actor(r), chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.ID,
		"message": "Job queued for reprocessing",
	})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), actor(r), chi.URLParam(r, "jobID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJobStaging(w http.ResponseWriter, r *http.Request) {
	rows, err := s.jobs.Staging(r.Context(), actor(r), chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.StagingRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"staging": rows, "total": len(rows)})
}

func (s *Server) handleJobIssues(w http.ResponseWriter, r *http.Request) {
	list, err := s.review.JobIssues(r.Context(), actor(r), chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	list, err := s.review.Issues(r.Context(), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.review.Issue(r.Context(), actor(r), chi.URLParam(r, "issueID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, issue)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var patch lifecycle.IssuePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	issue, err := s.review.UpdateIssue(r.Context(), actor(r), chi.URLParam(r, "issueID"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, issue)
}

func (s *Server) handleGetStaging(w http.ResponseWriter, r *http.Request) {
	rec, err := s.review.Staging(r.Context(), actor(r), chi.URLParam(r, "stagingID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateStaging(w http.ResponseWriter, r *http.Request) {
	var patch lifecycle.StagingPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	rec, err := s.review.UpdateStaging(r.Context(), actor(r), chi.URLParam(r, "stagingID"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.review.Contacts(r.Context(), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"contacts": contacts, "total": len(contacts)})
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.review.Contact(r.Context(), actor(r), chi.URLParam(r, "email"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
