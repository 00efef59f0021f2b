package api

import (
	"chinese-srs/internal/models"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// VocabularyRepositoryInterface defines the interface for vocabulary repository operations
type VocabularyRepositoryInterface interface {
	GetAll(filters models.VocabularyFilters) (*models.VocabularyListResponse, error)
	GetByID(id uuid.UUID) (*models.Vocabulary, error)
	GetByHSKLevel(level int) ([]models.Vocabulary, error)
	GetRandom(limit int, level *int) ([]models.Vocabulary, error)
}

// MockVocabularyRepository is a mock implementation of the vocabulary repository
type MockVocabularyRepository struct {
	mock.Mock
}

func (m *MockVocabularyRepository) GetAll(filters models.VocabularyFilters) (*models.VocabularyListResponse, error) {
	args := m.Called(filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VocabularyListResponse), args.Error(1)
}

func (m *MockVocabularyRepository) GetByID(id uuid.UUID) (*models.Vocabulary, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vocabulary), args.Error(1)
}

func (m *MockVocabularyRepository) GetByHSKLevel(level int) ([]models.Vocabulary, error) {
	args := m.Called(level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vocabulary), args.Error(1)
}

func (m *MockVocabularyRepository) GetRandom(limit int, level *int) ([]models.Vocabulary, error) {
	args := m.Called(limit, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vocabulary), args.Error(1)
}

// TestVocabularyHandler creates a handler with a mock repository for testing
type TestVocabularyHandler struct {
	vocabRepo VocabularyRepositoryInterface
}

func (h *TestVocabularyHandler) GetVocabularyList(c *gin.Context) {
	// Parse query parameters
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	var searchPtr *string
	if search := c.Query("search"); search != "" {
		searchPtr = &search
	}

	var hskLevel *int
	if levelStr := c.Query("hsk_level"); levelStr != "" {
		if level, err := strconv.Atoi(levelStr); err == nil && level >= 1 && level <= 6 {
			hskLevel = &level
		}
	}

	filters := models.VocabularyFilters{
		Page:     page,
		Limit:    limit,
		Search:   searchPtr,
		HSKLevel: hskLevel,
	}

	// Get vocabulary from database
	result, err := h.vocabRepo.GetAll(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve vocabulary",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TestVocabularyHandler) GetVocabularyItem(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid vocabulary ID",
		})
		return
	}

	vocab, err := h.vocabRepo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve vocabulary item",
		})
		return
	}

	if vocab == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Vocabulary item not found",
		})
		return
	}

	c.JSON(http.StatusOK, vocab)
}

func (h *TestVocabularyHandler) GetHSKVocabulary(c *gin.Context) {
	levelStr := c.Param("level")
	level, err := strconv.Atoi(levelStr)
	if err != nil || level < 1 || level > 6 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid HSK level. Must be between 1 and 6",
		})
		return
	}

	vocabulary, err := h.vocabRepo.GetByHSKLevel(level)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve HSK vocabulary",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hsk_level":  level,
		"vocabulary": vocabulary,
		"count":      len(vocabulary),
	})
}

func (h *TestVocabularyHandler) GetRandomVocabulary(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var level *int
	if levelStr := c.Query("hsk_level"); levelStr != "" {
		if levelVal, err := strconv.Atoi(levelStr); err == nil && levelVal >= 1 && levelVal <= 6 {
			level = &levelVal
		}
	}

	vocabulary, err := h.vocabRepo.GetRandom(limit, level)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve random vocabulary",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vocabulary": vocabulary,
		"count":      len(vocabulary),
		"limit":      limit,
		"hsk_level":  level,
	})
}

// Helper functions for creating test handlers
func MockVocabularyHandler() (*TestVocabularyHandler, *MockVocabularyRepository) {
	mockRepo := &MockVocabularyRepository{}
	handler := &TestVocabularyHandler{
		vocabRepo: mockRepo,
	}
	return handler, mockRepo
}
