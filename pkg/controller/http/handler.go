package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/usecase"
	"github.com/secmon-lab/storyweaver/pkg/utils/errutil"
)

func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	items := make([]model.TranscriptItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = model.TranscriptItem{
			Text:      item.Text,
			Speaker:   item.Speaker,
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
		}
	}

	transcript, err := s.uc.Transcript.Ingest(ctx, ownerFromContext(ctx), items)
	s.metrics.ObserveRequest("ingest", requestStatus(err))
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	resp := ingestResponse{
		TranscriptID: string(transcript.ID),
		Segments:     make([]segmentResponse, 0, len(transcript.Segments)),
		Display:      transcript.Display(),
	}
	for _, seg := range transcript.Segments {
		resp.Segments = append(resp.Segments, toSegmentResponse(seg))
	}
	writeJSON(ctx, w, http.StatusCreated, resp)
}

func (s *Server) getSegmentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	seg, err := s.uc.Segment.Get(ctx, ownerFromContext(ctx), model.SegmentID(chi.URLParam(r, "id")))
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toSegmentResponse(seg))
}

func (s *Server) correctSegmentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req correctRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	seg, err := s.uc.Segment.Correct(ctx, ownerFromContext(ctx), model.SegmentID(chi.URLParam(r, "id")),
		usecase.Correction{Text: req.Text, Speaker: req.Speaker})
	s.metrics.ObserveRequest("correct", requestStatus(err))
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toSegmentResponse(seg))
}

func (s *Server) searchSegmentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	hits, err := s.uc.Segment.Search(ctx, ownerFromContext(ctx), req.Query, req.TopK)
	s.metrics.ObserveRequest("search", requestStatus(err))
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	resp := searchResponse{Results: make([]searchHit, 0, len(hits))}
	for _, hit := range hits {
		resp.Results = append(resp.Results, searchHit{Segment: toSegmentResponse(hit.Segment), Score: hit.Score})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) generateOutlineHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	result, err := s.uc.Outline.Generate(ctx, ownerFromContext(ctx), toSegmentIDs(req.SegmentIDs), req.Instruction)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, generateResponse{
		Outline:           toOutlineResponse(result.Outline),
		Repair:            toRepairResponse(result.Report),
		MissingSegmentIDs: fromSegmentIDs(result.Missing),
	})
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	result, err := s.uc.Outline.Analyze(ctx, ownerFromContext(ctx), toSegmentIDs(req.SegmentIDs))
	if err != nil {
		errutil.HandleHTTP(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, analyzeResponse{
		Analysis:          toAnalysisResponse(result.Analysis),
		Repair:            toRepairResponse(result.Report),
		MissingSegmentIDs: fromSegmentIDs(result.Missing),
	})
}

func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	return string(errutil.Classify(err).Kind)
}
