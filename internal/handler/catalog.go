package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docebrew/cupcakeria/internal/domain/product"
)

type productView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	CategoryID  string `json:"category_id"`
	ImageURL    string `json:"image_url,omitempty"`
	Featured    bool   `json:"featured"`
	Available   bool   `json:"available"`
	Stock       int    `json:"stock"`
}

func toProductView(p product.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		CategoryID:  p.CategoryID,
		ImageURL:    p.ImageURL,
		Featured:    p.Featured,
		Available:   p.Available(),
		Stock:       p.Stock,
	}
}

func (s *Server) listProducts(c *gin.Context) {
	filter := product.ListFilter{
		CategorySlug: c.Query("category"),
		FeaturedOnly: c.Query("featured") == "true",
	}

	products, err := s.products.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	c.JSON(http.StatusOK, gin.H{"products": views})
}

func (s *Server) getProduct(c *gin.Context) {
	p, err := s.products.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductView(*p))
}

type categoryView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.products.ListCategories(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]categoryView, 0, len(categories))
	for _, cat := range categories {
		views = append(views, categoryView{
			ID:          cat.ID,
			Name:        cat.Name,
			Slug:        cat.Slug,
			Description: cat.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": views})
}
