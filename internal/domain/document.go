package domain

import "time"

// Troubleshooting knowledge base: a 4-level tree
// Category -> Subcategory -> SubSubcategory -> Step.
// Parent references are immutable after creation. Deleting a node is logical:
// the row stays, children become unreachable through the API.

// Category top level of the docs tree (doc_categories table).
type Category struct {
	CategoryID string    `db:"category_id" json:"category_id"` // UUID, PRIMARY KEY
	Name       string    `db:"name" json:"name"`
	Deleted    bool      `db:"deleted" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Subcategory second level (doc_subcategories table).
type Subcategory struct {
	SubcategoryID string    `db:"subcategory_id" json:"subcategory_id"`
	CategoryID    string    `db:"category_id" json:"category_id"` // immutable parent ref
	Name          string    `db:"name" json:"name"`
	Deleted       bool      `db:"deleted" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SubSubcategory third level, the "topic" (doc_subsubcategories table).
type SubSubcategory struct {
	SubSubcategoryID string    `db:"subsubcategory_id" json:"subsubcategory_id"`
	SubcategoryID    string    `db:"subcategory_id" json:"subcategory_id"` // immutable parent ref
	Name             string    `db:"name" json:"name"`
	Deleted          bool      `db:"deleted" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Step leaf solution step (doc_steps table). Steps are the searchable unit of
// the docs tree and carry a version for the search projection.
type Step struct {
	StepID           string `db:"step_id" json:"step_id"`
	SubSubcategoryID string `db:"subsubcategory_id" json:"subsubcategory_id"` // immutable parent ref

	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	Solution    string `db:"solution" json:"solution"`
	ImagePath   string `db:"image_path" json:"image_path,omitempty"`
	Status      string `db:"status" json:"status"` // active/archived

	Deleted   bool      `db:"deleted" json:"-"`
	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
