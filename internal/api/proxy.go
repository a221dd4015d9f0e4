package api

import (
	"net/http"

	"github.com/pauljones0/smart-shopper/internal/models"
)

type searchProductsBody struct {
	ProductName string `json:"productName" validate:"notblank"`
	Platform    string `json:"platform" validate:"required,source"`
	SortBy      string `json:"sortBy" validate:"omitempty,sortmode"`
	Page        int    `json:"page" validate:"gte=0"`
}

type searchProductsResponse struct {
	Products []models.Offer `json:"products"`
}

type analyzeProduct struct {
	Name     string `json:"name" validate:"notblank"`
	URL      string `json:"url" validate:"required,http_url"`
	Price    string `json:"price"`
	Image    string `json:"img"`
	Discount string `json:"discount"`
}

type analyzeBody struct {
	Product  analyzeProduct `json:"product"`
	Platform string         `json:"platform" validate:"required,source"`
}

type analyzeResponse struct {
	SentimentSummary models.Sentiment `json:"sentimentSummary"`
}

// handleSearchProducts fetches a single page from a single source without a session.
func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	var body searchProductsBody
	if !s.decode(w, r, &body) {
		return
	}

	src, _ := models.ParseSource(body.Platform)
	sortMode := models.SortRelevance
	if body.SortBy != "" {
		sortMode, _ = models.ParseSortMode(body.SortBy)
	}

	offers, err := s.searcher.SearchSource(r.Context(), models.SearchRequest{
		Query:     body.ProductName,
		Source:    src,
		Sort:      sortMode.SourceSort(),
		Page:      max(body.Page, 1),
		BatchSize: s.batchSize,
	})
	if err != nil {
		s.logger.Warn("Product search failed", "source", src, "error", err)
		writeServiceError(w, err, r.URL.Path)
		return
	}
	if offers == nil {
		offers = []models.Offer{}
	}
	writeJSON(w, http.StatusOK, searchProductsResponse{Products: offers})
}

// handleAnalyzeProductReviews runs the per-offer analysis for one product page.
func (s *Server) handleAnalyzeProductReviews(w http.ResponseWriter, r *http.Request) {
	var body analyzeBody
	if !s.decode(w, r, &body) {
		return
	}

	src, _ := models.ParseSource(body.Platform)
	offer := models.Offer{
		Name:          body.Product.Name,
		Source:        src,
		DisplayPrice:  body.Product.Price,
		DiscountLabel: body.Product.Discount,
		DetailURL:     body.Product.URL,
		ImageURL:      body.Product.Image,
	}

	sentiment, err := s.analyzer.Analyze(r.Context(), offer)
	if err != nil {
		s.logger.Warn("Review analysis failed", "offer", offer.Identity(), "error", err)
		writeServiceError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{SentimentSummary: sentiment})
}
