package models

import (
	"strings"
	"time"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type UpdateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Active      *bool  `json:"active"`
}

func (r *CreateCategoryRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Category name is required"
	}

	return errors
}

func (r *UpdateCategoryRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Category name is required"
	}

	return errors
}

// Seed categories for a fresh deployment.
var DefaultCategories = []string{
	"Electronics",
	"Clothing",
	"Books",
	"ID & Cards",
	"Keys",
	"Bags",
	"Jewelry",
	"Sports",
	"Other",
}
