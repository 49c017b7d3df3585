package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"recipechat/internal/conversation"
	"recipechat/internal/imagestore"
	"recipechat/internal/ingredient"
	"recipechat/internal/recipe"
)

const (
	llmTimeout  = 45 * time.Second
	readTimeout = 5 * time.Second

	defaultSimilarLimit = 5
	maxSimilarLimit     = 20
)

// RecipeGenerator produces and revises recipes with a language model.
type RecipeGenerator interface {
	GenerateRecipe(ctx context.Context, query, dietaryPreference, cuisine string) (*recipe.Recipe, error)
	EditRecipe(ctx context.Context, r *recipe.Recipe, e recipe.Edit) (*recipe.Recipe, error)
}

// GeminiClient defines the interface for interacting with the Gemini API.
type GeminiClient interface {
	RecipeGenerator
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LocalLLMClient defines the interface for interacting with the Local LLM API.
type LocalLLMClient interface {
	RecipeGenerator
}

// RecipeStore defines the interface for recipe data operations.
type RecipeStore interface {
	GetRecipe(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error)
	GetRecipeByRequestHash(ctx context.Context, requestHash string) (*recipe.Recipe, error)
	SaveRecipe(ctx context.Context, r *recipe.Recipe) error
	DeleteRecipe(ctx context.Context, id uuid.UUID) error
	ListRecipes(ctx context.Context, cuisine, dietaryPreference string) ([]*recipe.Recipe, error)
	SaveEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	FindSimilar(ctx context.Context, id uuid.UUID, limit int) ([]*recipe.Recipe, error)
	Ping(ctx context.Context) error
}

// ConversationStore defines the interface for chat session storage.
type ConversationStore interface {
	Create(ctx context.Context) (*conversation.Conversation, error)
	Get(ctx context.Context, id string) (*conversation.Conversation, error)
	Append(ctx context.Context, id string, msgs ...conversation.Message) (*conversation.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// ImageStore defines where uploaded dish photos go.
type ImageStore interface {
	Save(ctx context.Context, recipeID, ext string, data []byte) (string, error)
}

// Handler handles HTTP requests.
type Handler struct {
	GeminiClient   GeminiClient
	LocalLLMClient LocalLLMClient
	RecipeStore    RecipeStore
	Conversations  ConversationStore
	Images         ImageStore
	Log            logrus.FieldLogger
}

// NewHandler creates a new Handler.
func NewHandler(geminiClient GeminiClient, localLLMClient LocalLLMClient, recipeStore RecipeStore,
	conversations ConversationStore, images ImageStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		GeminiClient:   geminiClient,
		LocalLLMClient: localLLMClient,
		RecipeStore:    recipeStore,
		Conversations:  conversations,
		Images:         images,
		Log:            log,
	}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationID    string `json:"conversation_id"`
	Message           string `json:"message" binding:"required"`
	DietaryPreference string `json:"dietary_preference"`
	Cuisine           string `json:"cuisine"`
}

// ChatResponse carries the recipe the assistant answered with.
type ChatResponse struct {
	ConversationID string         `json:"conversation_id"`
	Recipe         *recipe.Recipe `json:"recipe"`
	Cached         bool           `json:"cached"`
}

// FormatRequest is the body of POST /ingredients/format.
type FormatRequest struct {
	Lines []string `json:"lines"`
}

// Health reports whether the recipe database is reachable.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	if err := h.RecipeStore.Ping(ctx); err != nil {
		requestLogger(c, h.Log).WithError(err).Error("database ping failed")
		c.String(http.StatusServiceUnavailable, "database unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}

// Chat answers a dish request with a Gemini recipe.
func (h *Handler) Chat(c *gin.Context) {
	h.chat(c, h.GeminiClient, h.GeminiClient)
}

// ChatLocal answers a dish request with the local LLM. Local recipes are not
// embedded, so they never appear in similarity results.
func (h *Handler) ChatLocal(c *gin.Context) {
	h.chat(c, h.LocalLLMClient, nil)
}

func (h *Handler) chat(c *gin.Context, gen RecipeGenerator, embedder GeminiClient) {
	log := requestLogger(c, h.Log)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err.Error()))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.String(http.StatusBadRequest, "message must not be empty")
		return
	}

	// Create a context with a 45-second timeout for external calls
	ctx, cancel := context.WithTimeout(c.Request.Context(), llmTimeout)
	defer cancel()

	conv, err := h.openConversation(ctx, req.ConversationID)
	if err != nil {
		h.fail(c, err, "conversation error")
		return
	}

	requestHash := recipe.GenerateRequestHash(req.Message, req.DietaryPreference, req.Cuisine)
	r, err := h.RecipeStore.GetRecipeByRequestHash(ctx, requestHash)
	cached := err == nil
	switch {
	case cached:
		log.WithField("recipe_id", r.ID).Info("recipe found for request hash")
	case errors.Is(err, recipe.ErrNotFound):
		log.WithFields(logrus.Fields{
			"dietary_preference": req.DietaryPreference,
			"cuisine":            req.Cuisine,
		}).Info("recipe not found in database, generating")

		r, err = gen.GenerateRecipe(ctx, req.Message, req.DietaryPreference, req.Cuisine)
		if err != nil {
			h.fail(c, err, "generation error")
			return
		}
		r.RequestHash = requestHash

		if err := h.persist(ctx, log, r, embedder); err != nil {
			h.fail(c, err, "failed to save recipe")
			return
		}
	default:
		h.fail(c, err, "database error")
		return
	}

	_, err = h.Conversations.Append(ctx, conv.ID,
		conversation.Message{Role: conversation.RoleUser, Content: req.Message},
		conversation.Message{Role: conversation.RoleAssistant, Content: r.Title, RecipeID: r.ID.String()},
	)
	if err != nil {
		h.fail(c, err, "conversation error")
		return
	}

	c.JSON(http.StatusOK, ChatResponse{ConversationID: conv.ID, Recipe: r.Rendered(), Cached: cached})
}

func (h *Handler) openConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	if id == "" {
		return h.Conversations.Create(ctx)
	}
	return h.Conversations.Get(ctx, id)
}

// persist saves r and, when embedder is set, its embedding. The embedding is
// computed while the row is written; failing to embed only costs the recipe
// its place in similarity search.
func (h *Handler) persist(ctx context.Context, log logrus.FieldLogger, r *recipe.Recipe, embedder GeminiClient) error {
	var vec []float32
	g, gctx := errgroup.WithContext(ctx)
	if embedder != nil {
		g.Go(func() error {
			v, err := embedder.Embed(gctx, r.EmbeddingText())
			if err != nil {
				log.WithError(err).Warn("failed to embed recipe")
				return nil
			}
			vec = v
			return nil
		})
	}
	g.Go(func() error {
		return h.RecipeStore.SaveRecipe(gctx, r)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if vec != nil {
		if err := h.RecipeStore.SaveEmbedding(ctx, r.ID, vec); err != nil {
			log.WithError(err).WithField("recipe_id", r.ID).Warn("failed to save embedding")
		}
	}
	return nil
}

// GetConversation returns the history of a chat session.
func (h *Handler) GetConversation(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	conv, err := h.Conversations.Get(ctx, c.Param("conversation_id"))
	if err != nil {
		h.fail(c, err, "conversation error")
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteConversation ends a chat session. Recipes it produced are kept.
func (h *Handler) DeleteConversation(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	if err := h.Conversations.Delete(ctx, c.Param("conversation_id")); err != nil {
		h.fail(c, err, "conversation error")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRecipes handles requests to retrieve recipes based on cuisine or dietary preference.
func (h *Handler) GetRecipes(c *gin.Context) {
	cuisine := strings.ToLower(c.Query("cuisine"))
	dietaryPreference := strings.ToLower(c.Query("dietary_preference"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	recipes, err := h.RecipeStore.ListRecipes(ctx, cuisine, dietaryPreference)
	if err != nil {
		h.fail(c, err, "database error")
		return
	}
	c.JSON(http.StatusOK, rendered(recipes))
}

// GetRecipe handles requests to retrieve a single recipe by id.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	r, err := h.RecipeStore.GetRecipe(ctx, id)
	if err != nil {
		h.fail(c, err, "database error")
		return
	}
	c.JSON(http.StatusOK, r.Rendered())
}

// GetSimilarRecipes returns the recipes nearest to :id in embedding space.
func (h *Handler) GetSimilarRecipes(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}

	limit := defaultSimilarLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.String(http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSimilarLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	if _, err := h.RecipeStore.GetRecipe(ctx, id); err != nil {
		h.fail(c, err, "database error")
		return
	}
	recipes, err := h.RecipeStore.FindSimilar(ctx, id, limit)
	if err != nil {
		h.fail(c, err, "database error")
		return
	}
	c.JSON(http.StatusOK, rendered(recipes))
}

// EditRecipe applies a follow-up edit to a saved recipe. The result is saved
// as a new recipe and the conversation, when given, moves onto it; the
// original stays as it was for other chats.
func (h *Handler) EditRecipe(c *gin.Context) {
	log := requestLogger(c, h.Log)

	id, ok := recipeID(c)
	if !ok {
		return
	}

	var edit recipe.Edit
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err.Error()))
		return
	}
	if err := edit.Validate(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), llmTimeout)
	defer cancel()

	current, err := h.RecipeStore.GetRecipe(ctx, id)
	if err != nil {
		h.fail(c, err, "database error")
		return
	}
	if edit.ConversationID != "" {
		if _, err := h.Conversations.Get(ctx, edit.ConversationID); err != nil {
			h.fail(c, err, "conversation error")
			return
		}
	}

	edited, err := h.GeminiClient.EditRecipe(ctx, current, edit)
	if err != nil {
		h.fail(c, err, "edit error")
		return
	}
	revision := current.Revise(edited)
	if err := h.persist(ctx, log, revision, h.GeminiClient); err != nil {
		h.fail(c, err, "failed to save recipe")
		return
	}
	log.WithFields(logrus.Fields{
		"recipe_id":   id,
		"revision_id": revision.ID,
		"kind":        edit.Kind,
	}).Info("recipe edited")

	if edit.ConversationID != "" {
		_, err := h.Conversations.Append(ctx, edit.ConversationID,
			conversation.Message{Role: conversation.RoleUser, Content: edit.Summary()},
			conversation.Message{Role: conversation.RoleAssistant, Content: revision.Title, RecipeID: revision.ID.String()},
		)
		if err != nil {
			h.fail(c, err, "conversation error")
			return
		}
	}

	c.JSON(http.StatusOK, ChatResponse{ConversationID: edit.ConversationID, Recipe: revision.Rendered()})
}

// DeleteRecipe removes a recipe.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	if err := h.RecipeStore.DeleteRecipe(ctx, id); err != nil {
		h.fail(c, err, "database error")
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage attaches a dish photo to a recipe.
func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("get form err: %s", err.Error()))
		return
	}

	extension := strings.ToLower(filepath.Ext(file.Filename))
	if !imagestore.SupportedExtension(extension) {
		c.String(http.StatusBadRequest, "Invalid file type. Only JPEG, JPG, and PNG images are allowed.")
		return
	}

	src, err := file.Open()
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("open file err: %s", err.Error()))
		return
	}
	defer src.Close()

	imageData, err := io.ReadAll(src)
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("read image err: %s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), llmTimeout)
	defer cancel()

	r, err := h.RecipeStore.GetRecipe(ctx, id)
	if err != nil {
		h.fail(c, err, "database error")
		return
	}

	imagePath, err := h.Images.Save(ctx, id.String(), extension, imageData)
	if err != nil {
		h.fail(c, err, "failed to save image")
		return
	}
	r.ImagePath = imagePath

	if err := h.RecipeStore.SaveRecipe(ctx, r); err != nil {
		h.fail(c, err, "failed to save recipe")
		return
	}
	c.JSON(http.StatusOK, r.Rendered())
}

// FormatIngredients normalizes ingredient lines for display.
func (h *Handler) FormatIngredients(c *gin.Context) {
	var req FormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err.Error()))
		return
	}

	lines := ingredient.FormatLines(req.Lines)
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, FormatRequest{Lines: lines})
}

func recipeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid recipe id")
		return uuid.Nil, false
	}
	return id, true
}

func rendered(recipes []*recipe.Recipe) []*recipe.Recipe {
	out := make([]*recipe.Recipe, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, r.Rendered())
	}
	return out
}

// fail maps err onto a status code and writes it as plain text.
func (h *Handler) fail(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.String(http.StatusRequestTimeout, fmt.Sprintf("%s: request timed out", what))
	case errors.Is(err, recipe.ErrNotFound):
		c.String(http.StatusNotFound, "Recipe not found")
	case errors.Is(err, conversation.ErrNotFound):
		c.String(http.StatusNotFound, "Conversation not found")
	case errors.Is(err, recipe.ErrInvalidEdit), errors.Is(err, imagestore.ErrUnsupportedFormat),
		errors.Is(err, imagestore.ErrInvalidImage):
		c.String(http.StatusBadRequest, err.Error())
	default:
		requestLogger(c, h.Log).WithError(err).Error(what)
		c.String(http.StatusInternalServerError, fmt.Sprintf("%s: %s", what, err.Error()))
	}
}
