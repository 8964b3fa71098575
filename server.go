package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"energy-nl-query/tsquery"
)

type NLQueryServer struct {
	translator      *tsquery.Translator
	retriever       *Retriever
	answerer        *Answerer
	metrics         *Metrics
	defaultLanguage tsquery.Language
	batchWorkers    int
}

// NewNLQueryServer wires the HTTP surface. retriever may be nil when no
// document index is configured.
func NewNLQueryServer(cfg Config, translator *tsquery.Translator, retriever *Retriever, answerer *Answerer) *NLQueryServer {
	return &NLQueryServer{
		translator:      translator,
		retriever:       retriever,
		answerer:        answerer,
		metrics:         NewMetrics(),
		defaultLanguage: cfg.DefaultLanguage,
		batchWorkers:    cfg.BatchWorkers,
	}
}

type translateRequest struct {
	Question string        `json:"question"`
	Language string        `json:"language"`
	Context  tsquery.Hints `json:"context"`
}

type translateResponse struct {
	tsquery.Result
	RequestID    string `json:"requestId"`
	ResponseTime int64  `json:"responseTime"`
	Success      bool   `json:"success"`
}

type batchRequest struct {
	Questions []string      `json:"questions"`
	Language  string        `json:"language"`
	Context   tsquery.Hints `json:"context"`
}

type batchItem struct {
	Question string          `json:"question"`
	Success  bool            `json:"success"`
	Result   *tsquery.Result `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, requestID string, err error) {
	writeJSON(w, status, map[string]interface{}{
		"error":     err.Error(),
		"success":   false,
		"requestId": requestID,
	})
}

// statusFor maps translator errors onto HTTP: caller mistakes are 400,
// anything else is a defect on our side.
func statusFor(err error) int {
	if tsquery.IsInputError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case tsquery.IsInputError(err):
		return outcomeInputError
	default:
		return outcomeInternalError
	}
}

func (s *NLQueryServer) language(tag string) (tsquery.Language, error) {
	if tag == "" {
		return s.defaultLanguage, nil
	}
	return tsquery.ParseLanguage(tag)
}

// translate runs the translator and records the outcome.
func (s *NLQueryServer) translate(question string, lang tsquery.Language, hints tsquery.Hints) (tsquery.Result, error) {
	res, err := s.translator.Translate(question, lang, hints)
	intent := "none"
	if err == nil {
		intent = res.Intent.String()
	} else {
		var missing *tsquery.MissingParametersError
		if errors.As(err, &missing) {
			intent = missing.Intent.String()
		}
	}
	s.metrics.ObserveTranslation(intent, lang.String(), outcomeFor(err), res.Confidence)
	return res, err
}

func (s *NLQueryServer) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := xid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	var req translateRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, requestID, fmt.Errorf("invalid JSON body: %w", err))
			return
		}
	} else {
		req.Question = r.URL.Query().Get("q")
		req.Language = r.URL.Query().Get("lang")
	}

	lang, err := s.language(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, err)
		return
	}

	res, err := s.translate(req.Question, lang, req.Context)
	if err != nil {
		log.Printf("❌ [%s] Translation failed for %q: %v", requestID, req.Question, err)
		writeError(w, statusFor(err), requestID, err)
		return
	}

	log.Printf("✅ [%s] %s → %s (%s, confidence %.2f)", requestID, req.Question, res.Intent, res.Language, res.Confidence)
	writeJSON(w, http.StatusOK, translateResponse{
		Result:       res,
		RequestID:    requestID,
		ResponseTime: time.Since(startTime).Milliseconds(),
		Success:      true,
	})
}

func (s *NLQueryServer) HandleBatch(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := xid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if len(req.Questions) == 0 {
		writeError(w, http.StatusBadRequest, requestID, errors.New("questions must not be empty"))
		return
	}
	lang, err := s.language(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, err)
		return
	}

	items := make([]batchItem, len(req.Questions))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.batchWorkers)
	for i, question := range req.Questions {
		i, question := i, question
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			items[i] = batchItem{Question: question}
			res, err := s.translate(question, lang, req.Context)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Success = true
			items[i].Result = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("❌ [%s] Batch aborted: %v", requestID, err)
		writeError(w, http.StatusServiceUnavailable, requestID, err)
		return
	}

	succeeded := 0
	for _, it := range items {
		if it.Success {
			succeeded++
		}
	}
	log.Printf("📦 [%s] Batch translated %d/%d question(s)", requestID, succeeded, len(items))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestId":    requestID,
		"success":      true,
		"language":     lang,
		"results":      items,
		"succeeded":    succeeded,
		"failed":       len(items) - succeeded,
		"responseTime": time.Since(startTime).Milliseconds(),
	})
}

func (s *NLQueryServer) HandleAsk(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := xid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	question := r.URL.Query().Get("q")
	log.Printf("💬 [%s] Question received: %s", requestID, question)

	lang, err := s.language(r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, err)
		return
	}
	res, err := s.translate(question, lang, nil)
	if err != nil {
		writeError(w, statusFor(err), requestID, err)
		return
	}
	if !s.answerer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, requestID, ErrAnswererDisabled)
		return
	}

	var docs []Snippet
	if s.retriever != nil {
		docs, err = s.retriever.Retrieve(r.Context(), question, res)
		if err != nil {
			log.Printf("❌ [%s] Document retrieval failed: %v", requestID, err)
			writeError(w, http.StatusBadGateway, requestID, err)
			return
		}
	}

	answer, err := s.answerer.Answer(r.Context(), question, res, docs)
	if err != nil {
		log.Printf("❌ [%s] Failed to generate answer: %v", requestID, err)
		writeError(w, http.StatusBadGateway, requestID, fmt.Errorf("failed to generate answer: %w", err))
		return
	}

	elapsed := time.Since(startTime)
	s.metrics.ObserveAsk(elapsed, len(docs))
	log.Printf("✅ [%s] Answer generated in %dms from %d document(s)", requestID, elapsed.Milliseconds(), len(docs))

	if docs == nil {
		docs = []Snippet{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestId":      requestID,
		"question":       question,
		"answer":         answer,
		"query":          res.Query,
		"intent":         res.Intent,
		"language":       res.Language,
		"confidence":     res.Confidence,
		"documents":      docs,
		"documentsFound": len(docs),
		"success":        true,
		"responseTime":   elapsed.Milliseconds(),
	})
}

func (s *NLQueryServer) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	templates := s.translator.Registry().Templates()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
		"success":   true,
	})
}

func (s *NLQueryServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"retrieval": s.retriever != nil,
		"answerer":  s.answerer.Enabled(),
	})
}

func (s *NLQueryServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/translate", s.HandleTranslate).Methods("GET", "POST")
	r.HandleFunc("/api/translate/batch", s.HandleBatch).Methods("POST")
	r.HandleFunc("/api/ask", s.HandleAsk).Methods("GET")
	r.HandleFunc("/api/templates", s.HandleTemplates).Methods("GET")
	r.HandleFunc("/health", s.HandleHealth).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	log.Println("NL Query Server routes registered:")
	log.Println("  GET|POST /api/translate - Translate a question into Flux or InfluxQL")
	log.Println("  POST /api/translate/batch - Translate many questions at once")
	log.Println("  GET /api/ask?q=<question> - Answer a question from the query and indexed documents")
	log.Println("  GET /api/templates - List query templates")
	log.Println("  GET /health, GET /metrics")
	return r
}
