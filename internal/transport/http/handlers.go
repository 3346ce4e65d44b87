package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quizhub/internal/app"
	"quizhub/internal/auth"
	"quizhub/internal/domain"
)

// Server wires the quiz API onto a ServeMux. Authentication context is
// extracted per request and passed explicitly into handlers.
type Server struct {
	attempts *app.AttemptService
	catalog  *app.CatalogService
	accounts *app.AuthService
	tokens   *auth.Manager
	feed     *app.LeaderboardFeed
}

func NewServer(attempts *app.AttemptService, catalog *app.CatalogService, accounts *app.AuthService, tokens *auth.Manager, feed *app.LeaderboardFeed) *Server {
	return &Server{
		attempts: attempts,
		catalog:  catalog,
		accounts: accounts,
		tokens:   tokens,
		feed:     feed,
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.withAuth(s.handleMe))

	mux.HandleFunc("GET /api/quizzes", s.handleListQuizzes)
	mux.HandleFunc("GET /api/quizzes/{id}", s.handleGetQuiz)
	mux.HandleFunc("GET /api/quizzes/{id}/questions", s.withAuth(s.handleListQuestions))
	mux.HandleFunc("POST /api/quizzes/{id}/start", s.withAuth(s.handleStartQuiz))
	mux.HandleFunc("POST /api/quizzes/{id}/submit", s.withAuth(s.handleSubmitQuiz))
	mux.HandleFunc("GET /api/my-attempts", s.withAuth(s.handleMyAttempts))
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	mux.HandleFunc("POST /api/admin/quizzes", s.withAdmin(s.handleCreateQuiz))
	mux.HandleFunc("DELETE /api/admin/quizzes/{id}", s.withAdmin(s.handleDeleteQuiz))
	mux.HandleFunc("GET /api/admin/quizzes/{id}/questions", s.withAdmin(s.handleAdminQuestions))
	mux.HandleFunc("POST /api/admin/questions", s.withAdmin(s.handleCreateQuestion))
	mux.HandleFunc("DELETE /api/admin/questions/{id}", s.withAdmin(s.handleDeleteQuestion))
	mux.HandleFunc("POST /api/admin/categories", s.withAdmin(s.handleCreateCategory))
	mux.HandleFunc("GET /api/admin/categories", s.withAdmin(s.handleListCategories))

	mux.HandleFunc("GET /ws/leaderboard", s.serveLeaderboardFeed)

	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, identity auth.Identity)

// withAuth requires a valid bearer token and hands the identity down.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.identify(r)
		if err != nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		next(w, r, identity)
	}
}

// withAdmin additionally requires the admin role.
func (s *Server) withAdmin(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.identify(r)
		if err != nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		if !identity.IsAdmin() {
			writeError(w, domain.ErrForbidden)
			return
		}
		next(w, r, identity)
	}
}

func (s *Server) identify(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Identity{}, domain.ErrUnauthorized
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return s.tokens.Verify(token)
}

// --- auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	userID, err := s.accounts.Register(r.Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user_id": userID,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	user, token, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    userPayload(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	user, err := s.accounts.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userPayload(user)})
}

func userPayload(user domain.User) map[string]any {
	return map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	}
}

// --- catalog ---

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.catalog.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	quiz, err := s.catalog.Get(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": quiz})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	quizID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	questions, err := s.catalog.QuestionsForDisplay(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// --- attempts ---

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	quizID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	attemptID, err := s.attempts.Open(r.Context(), identity.UserID, quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Quiz started",
		"attempt_id": attemptID,
	})
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	quizID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	var req struct {
		AttemptID int64             `json:"attempt_id"`
		Answers   map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	report, err := s.attempts.Submit(r.Context(), req.AttemptID, quizID, normalizeAnswers(req.Answers))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Quiz submitted successfully",
		"score":           report.Score,
		"total_questions": report.TotalQuestions,
		"results":         report.Results,
	})
}

// normalizeAnswers coerces JSON object keys to canonical int64 question ids.
// Keys that do not parse are dropped; they could never match a question.
func normalizeAnswers(raw map[string]string) domain.AnswerMap {
	answers := make(domain.AnswerMap, len(raw))
	for key, value := range raw {
		questionID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		answers[questionID] = domain.NormalizeOption(value)
	}
	return answers
}

func (s *Server) handleMyAttempts(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	attempts, err := s.attempts.History(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.attempts.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

// --- admin ---

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CategoryID  int64  `json:"category_id"`
		TimeLimit   int    `json:"time_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	quizID, err := s.catalog.CreateQuiz(r.Context(), identity.UserID, req.Title, req.Description, req.CategoryID, req.TimeLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Quiz created successfully",
		"quiz_id": quizID,
	})
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	quizID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := s.catalog.DeactivateQuiz(r.Context(), quizID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Quiz deleted successfully"})
}

func (s *Server) handleAdminQuestions(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	quizID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	questions, err := s.catalog.QuestionsForAdmin(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		payload = append(payload, map[string]any{
			"id":             q.ID,
			"quiz_id":        q.QuizID,
			"question_text":  q.Text,
			"option_a":       q.OptionA,
			"option_b":       q.OptionB,
			"option_c":       q.OptionC,
			"option_d":       q.OptionD,
			"correct_option": q.Correct,
			"points":         q.Points,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": payload})
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	var req struct {
		QuizID        int64  `json:"quiz_id"`
		QuestionText  string `json:"question_text"`
		OptionA       string `json:"option_a"`
		OptionB       string `json:"option_b"`
		OptionC       string `json:"option_c"`
		OptionD       string `json:"option_d"`
		CorrectOption string `json:"correct_option"`
		Points        int    `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	questionID, err := s.catalog.CreateQuestion(r.Context(), req.QuizID, req.QuestionText,
		req.OptionA, req.OptionB, req.OptionC, req.OptionD, req.CorrectOption, req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "Question created successfully",
		"question_id": questionID,
	})
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	questionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := s.catalog.DeleteQuestion(r.Context(), questionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Question deleted successfully"})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	categoryID, err := s.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "Category created successfully",
		"category_id": categoryID,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	categories, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// --- helpers ---

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrCategoryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDuplicateEmail):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrStoreFailure):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"message": err.Error()})
}
