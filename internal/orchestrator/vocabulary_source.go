package orchestrator

import (
	"context"
	"fmt"

	"chinese-srs/internal/models"

	"github.com/google/uuid"
)

// VocabularySource adapts models.VocabularyRepository to the orchestrator's
// ItemSource contract, keeping the scheduling core (scheduler/session/
// events/projection) free of any Chinese-vocabulary-specific types per
// spec §9 ("content domain is a caller-injected collaborator, not part of
// the core").
type VocabularySource struct {
	repo *models.VocabularyRepository
}

// NewVocabularySource wraps a VocabularyRepository as an ItemSource.
func NewVocabularySource(repo *models.VocabularyRepository) *VocabularySource {
	return &VocabularySource{repo: repo}
}

// GetItemDetails implements ItemSource.
func (s *VocabularySource) GetItemDetails(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemDetails, error) {
	vocab, err := s.repo.GetManyByID(itemIDs)
	if err != nil {
		return nil, fmt.Errorf("vocabulary_source: get_item_details: %w", err)
	}
	out := make(map[uuid.UUID]ItemDetails, len(vocab))
	for _, v := range vocab {
		out[v.ID] = ItemDetails{ItemID: v.ID, Chinese: v.Chinese, Pinyin: v.Pinyin, English: v.English}
	}
	return out, nil
}

// CandidateItemIDs implements ItemSource, returning the known-vocabulary
// universe the Item Selector draws New items from (spec §4.D).
func (s *VocabularySource) CandidateItemIDs(ctx context.Context, hskLevel *int) ([]uuid.UUID, error) {
	var vocab []models.Vocabulary
	var err error
	if hskLevel != nil {
		vocab, err = s.repo.GetByHSKLevel(*hskLevel)
	} else {
		list, listErr := s.repo.GetAll(models.VocabularyFilters{Limit: 1000, Page: 1})
		err = listErr
		if list != nil {
			vocab = list.Vocabulary
		}
	}
	if err != nil {
		return nil, fmt.Errorf("vocabulary_source: candidate_item_ids: %w", err)
	}

	ids := make([]uuid.UUID, len(vocab))
	for i, v := range vocab {
		ids[i] = v.ID
	}
	return ids, nil
}
