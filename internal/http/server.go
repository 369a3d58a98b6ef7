package httpapp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecotrac/ecotrac/internal/config"
	"github.com/ecotrac/ecotrac/internal/metrics"
	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store"

	_ "github.com/ecotrac/ecotrac/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

const (
	msgJoined         = "Joined successfully!"
	msgAlreadyJoined  = "Already joined this challenge"
	msgInternal       = "internal server error"
	msgEmailRequired  = "Email is required"
	msgInvalidBody    = "invalid JSON body"
	msgChallengeGone  = "Challenge not found"
	msgRouteNotFound  = "not found"
	msgMethodNotAllow = "method not allowed"
)

type Server struct {
	store   store.Store
	cfg     config.Config
	log     *logrus.Entry
	metrics *metrics.Metrics
	handler http.Handler
}

func NewServer(st store.Store, cfg config.Config, log *logrus.Entry) *Server {
	s := &Server{store: st, cfg: cfg, log: log, metrics: metrics.New()}
	s.handler = withCORS(requestID(http.HandlerFunc(s.dispatch)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// route resolves a request to its metrics label and handler. Labels use
// path templates so ids do not blow up metric cardinality.
func (s *Server) route(r *http.Request) (string, http.HandlerFunc) {
	if strings.HasPrefix(r.URL.Path, "/swagger/") {
		return "/swagger", httpSwagger.WrapHandler
	}
	segments := splitPath(r.URL.Path)

	switch {
	case len(segments) == 0:
		return "/", methods{http.MethodGet: s.handleRoot}.serve
	case len(segments) == 1 && segments[0] == "healthz":
		return "/healthz", methods{http.MethodGet: s.handleHealthz}.serve
	case len(segments) == 1 && segments[0] == "metrics":
		return "/metrics", methods{http.MethodGet: s.metrics.Handler().ServeHTTP}.serve
	case len(segments) == 1 && segments[0] == "openapi.json":
		return "/openapi.json", methods{http.MethodGet: s.serveOpenAPIJSON}.serve
	case len(segments) == 1 && segments[0] == "challenges":
		return "/challenges", methods{
			http.MethodGet:  s.handleListChallenges,
			http.MethodPost: s.handleCreateChallenge,
		}.serve
	case len(segments) == 2 && segments[0] == "challenges" && segments[1] == "joinedChallenges":
		return "/challenges/joinedChallenges", methods{http.MethodGet: s.handleListJoinedChallenges}.serve
	case len(segments) == 2 && segments[0] == "challenges":
		id := segments[1]
		return "/challenges/{id}", methods{
			http.MethodGet:    func(w http.ResponseWriter, r *http.Request) { s.handleGetChallenge(w, r, id) },
			http.MethodPut:    func(w http.ResponseWriter, r *http.Request) { s.handleUpdateChallenge(w, r, id) },
			http.MethodDelete: func(w http.ResponseWriter, r *http.Request) { s.handleDeleteChallenge(w, r, id) },
		}.serve
	case len(segments) == 3 && segments[0] == "challenges" && segments[1] == "join":
		id := segments[2]
		return "/challenges/join/{id}", methods{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) { s.handleJoinChallenge(w, r, id) },
		}.serve
	case len(segments) == 1 && segments[0] == "my-activities":
		return "/my-activities", methods{http.MethodGet: s.handleMyActivities}.serve
	case len(segments) == 2 && segments[0] == "api" && segments[1] == "tips":
		return "/api/tips", methods{
			http.MethodGet:  s.handleListTips,
			http.MethodPost: s.handleCreateTip,
		}.serve
	}
	return "unmatched", func(w http.ResponseWriter, r *http.Request) { notFound(w) }
}

// methods dispatches on the request method of an already matched path.
type methods map[string]http.HandlerFunc

func (m methods) serve(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	methodNotAllowed(w)
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type insertResponse struct {
	Success bool               `json:"success"`
	Result  model.InsertResult `json:"result"`
}

type updateResponse struct {
	Success bool               `json:"success"`
	Result  model.UpdateResult `json:"result"`
}

type deleteResponse struct {
	Success bool               `json:"success"`
	Result  model.DeleteResult `json:"result"`
}

type tipResponse struct {
	Success   bool               `json:"success"`
	TipResult model.InsertResult `json:"tipResult"`
}

type activitiesResponse struct {
	Success    bool                 `json:"success"`
	Activities []model.ActivityView `json:"activities"`
	Challenges []model.Document     `json:"challenges"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type joinRequest struct {
	Email string `json:"email"`
}

// handleRoot godoc
//
//	@Summary	Liveness string
//	@Tags		Health
//	@Produce	plain
//	@Success	200	{string}	string	"hello world"
//	@Router		/ [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "hello world")
}

// handleHealthz godoc
//
//	@Summary		Store health
//	@Description	Pings the document store.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	healthResponse
//	@Failure		503	{object}	healthResponse
//	@Router			/healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger(r).WithError(err).Warn("store ping failed")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: s.cfg.Store})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: s.cfg.Store})
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = io.WriteString(w, doc)
}

// handleListChallenges godoc
//
//	@Summary	List challenges
//	@Tags		Challenges
//	@Produce	json
//	@Success	200	{array}		map[string]interface{}
//	@Failure	500	{object}	messageResponse
//	@Router		/challenges [get]
func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.store.ListChallenges(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if challenges == nil {
		challenges = []model.Document{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

// handleGetChallenge godoc
//
//	@Summary	Get a challenge
//	@Tags		Challenges
//	@Produce	json
//	@Param		id	path		string	true	"Challenge ID"
//	@Success	200	{object}	map[string]interface{}
//	@Failure	404	{object}	messageResponse	"Unknown or malformed id"
//	@Router		/challenges/{id} [get]
func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request, id string) {
	challenge, err := s.store.GetChallenge(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

// handleCreateChallenge godoc
//
//	@Summary		Create a challenge
//	@Description	Persists the body as is. A client supplied _id is discarded.
//	@Tags			Challenges
//	@Accept			json
//	@Produce		json
//	@Param			challenge	body		object	true	"Challenge fields"
//	@Success		200			{object}	insertResponse
//	@Failure		400			{object}	messageResponse
//	@Router			/challenges [post]
func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	if err := readJSON(r.Body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if doc == nil {
		doc = model.Document{}
	}
	res, err := s.store.CreateChallenge(r.Context(), doc)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger(r).WithField("challenge_id", res.InsertedID).Info("challenge created")
	writeJSON(w, http.StatusOK, insertResponse{Success: true, Result: res})
}

// handleUpdateChallenge godoc
//
//	@Summary		Update a challenge
//	@Description	Sets the given top-level fields, leaving the others untouched.
//	@Tags			Challenges
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string	true	"Challenge ID"
//	@Param			challenge	body		object	true	"Fields to set"
//	@Success		200			{object}	updateResponse
//	@Failure		400			{object}	messageResponse
//	@Failure		404			{object}	messageResponse
//	@Router			/challenges/{id} [put]
func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request, id string) {
	var fields model.Document
	if err := readJSON(r.Body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	res, err := s.store.UpdateChallenge(r.Context(), id, fields)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{Success: true, Result: res})
}

// handleDeleteChallenge godoc
//
//	@Summary	Delete a challenge
//	@Tags		Challenges
//	@Produce	json
//	@Param		id	path		string	true	"Challenge ID"
//	@Success	200	{object}	deleteResponse
//	@Failure	404	{object}	messageResponse
//	@Router		/challenges/{id} [delete]
func (s *Server) handleDeleteChallenge(w http.ResponseWriter, r *http.Request, id string) {
	res, err := s.store.DeleteChallenge(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.logger(r).WithField("challenge_id", id).Info("challenge deleted")
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Result: res})
}

// handleJoinChallenge godoc
//
//	@Summary		Join a challenge
//	@Description	Records the join once per email and challenge and bumps the participant count.
//	@Description	A repeated join answers 200 with success=false.
//	@Tags			Joins
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Challenge ID"
//	@Param			request	body		joinRequest	true	"Participant"
//	@Success		200		{object}	messageResponse
//	@Failure		400		{object}	messageResponse	"Missing email"
//	@Failure		404		{object}	messageResponse	"Malformed challenge id"
//	@Router			/challenges/join/{id} [post]
func (s *Server) handleJoinChallenge(w http.ResponseWriter, r *http.Request, id string) {
	var req joinRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, msgEmailRequired)
		return
	}
	if !store.ValidID(id) {
		writeError(w, http.StatusNotFound, msgChallengeGone)
		return
	}

	ctx := r.Context()
	log := s.logger(r).WithFields(logrus.Fields{"challenge_id": id, "email": email})
	activity := &model.UserActivity{
		ChallengeID: id,
		Email:       email,
		Type:        model.ActivityJoin,
		JoinedAt:    time.Now().UTC(),
	}

	err := s.store.ClaimJoin(ctx, activity)
	if errors.Is(err, store.ErrAlreadyJoined) {
		s.metrics.ObserveJoin(metrics.JoinDuplicate)
		writeJSON(w, http.StatusOK, messageResponse{Success: false, Message: msgAlreadyJoined})
		return
	}
	if err != nil {
		s.metrics.ObserveJoin(metrics.JoinFailed)
		s.internalError(w, r, err)
		return
	}

	if err := s.store.IncrementParticipants(ctx, id, 1); err != nil {
		if !store.IsNotFound(err) {
			s.metrics.ObserveJoin(metrics.JoinFailed)
			s.internalError(w, r, err)
			return
		}
		log.Warn("joined challenge does not exist; participants not counted")
	}

	if s.cfg.AuditJoins {
		jc := &model.JoinedChallenge{ChallengeID: id, Email: email, JoinedAt: activity.JoinedAt}
		if err := s.store.CreateJoinedChallenge(ctx, jc); err != nil {
			log.WithError(err).Error("audit join")
		}
	}

	s.metrics.ObserveJoin(metrics.JoinJoined)
	log.Info("challenge joined")
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msgJoined})
}

// handleListJoinedChallenges godoc
//
//	@Summary	Join audit log
//	@Tags		Joins
//	@Produce	json
//	@Success	200	{array}	model.JoinedChallenge
//	@Router		/challenges/joinedChallenges [get]
func (s *Server) handleListJoinedChallenges(w http.ResponseWriter, r *http.Request) {
	joined, err := s.store.ListJoinedChallenges(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if joined == nil {
		joined = []model.JoinedChallenge{}
	}
	writeJSON(w, http.StatusOK, joined)
}

// handleMyActivities godoc
//
//	@Summary		A user's activities
//	@Description	Newest first. Each activity carries its challenge inline, or null when the challenge is gone.
//	@Tags			Activities
//	@Produce		json
//	@Param			email	query		string	true	"User email"
//	@Success		200		{object}	activitiesResponse
//	@Failure		400		{object}	messageResponse
//	@Router			/my-activities [get]
func (s *Server) handleMyActivities(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, msgEmailRequired)
		return
	}

	activities, err := s.store.ListActivitiesByEmail(r.Context(), email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		if a.ChallengeID != "" {
			ids = append(ids, a.ChallengeID)
		}
	}
	challenges, err := s.store.GetChallengesByIDs(r.Context(), ids)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	byID := make(map[string]model.Document, len(challenges))
	for _, c := range challenges {
		byID[c.ID()] = c
	}

	views := make([]model.ActivityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, model.ActivityView{UserActivity: a, Challenge: byID[a.ChallengeID]})
	}
	if challenges == nil {
		challenges = []model.Document{}
	}
	writeJSON(w, http.StatusOK, activitiesResponse{Success: true, Activities: views, Challenges: challenges})
}

// handleCreateTip godoc
//
//	@Summary		Post a tip
//	@Description	upvotes defaults to 0 and createdAt is set by the server. A tip activity is logged for the author email.
//	@Tags			Tips
//	@Accept			json
//	@Produce		json
//	@Param			tip	body		object{title=string,content=string,category=string,email=string}	true	"Tip"
//	@Success		200	{object}	tipResponse
//	@Failure		400	{object}	messageResponse
//	@Router			/api/tips [post]
func (s *Server) handleCreateTip(w http.ResponseWriter, r *http.Request) {
	var tip model.Document
	if err := readJSON(r.Body, &tip); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if tip == nil {
		tip = model.Document{}
	}
	if _, ok := tip["upvotes"]; !ok {
		tip["upvotes"] = 0
	}
	now := time.Now().UTC()
	tip["createdAt"] = now

	res, err := s.store.CreateTip(r.Context(), tip)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if email := strings.TrimSpace(tip.String("email")); email != "" {
		activity := &model.UserActivity{
			Email:    email,
			Type:     model.ActivityTip,
			TipID:    res.InsertedID,
			Title:    tip.String("title"),
			JoinedAt: now,
		}
		if err := s.store.CreateActivity(r.Context(), activity); err != nil {
			s.internalError(w, r, err)
			return
		}
	}

	s.logger(r).WithField("tip_id", res.InsertedID).Info("tip created")
	writeJSON(w, http.StatusOK, tipResponse{Success: true, TipResult: res})
}

// handleListTips godoc
//
//	@Summary	List tips
//	@Tags		Tips
//	@Produce	json
//	@Param		sort	query	string	false	"Sort order"	Enums(new)
//	@Success	200		{array}	map[string]interface{}
//	@Router		/api/tips [get]
func (s *Server) handleListTips(w http.ResponseWriter, r *http.Request) {
	opts := store.TipListOpts{Sort: r.URL.Query().Get("sort")}
	tips, err := s.store.ListTips(r.Context(), opts)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if tips == nil {
		tips = []model.Document{}
	}
	writeJSON(w, http.StatusOK, tips)
}

// storeError maps a failed lookup of an addressed challenge to 404 and
// anything else to 500.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, msgChallengeGone)
		return
	}
	s.internalError(w, r, err)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger(r).WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, msgInternal)
}

var errTrailingData = errors.New("unexpected data after JSON value")

// readJSON decodes a request body holding a single JSON value. An empty body
// leaves dest untouched.
func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	err := dec.Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Success: false, Message: message})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, msgRouteNotFound)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllow)
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
