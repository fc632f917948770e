package models

type BlogPost struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	PostBody        string `json:"postBody"`
	PostSummary     string `json:"postSummary"`
	SummaryText     string `json:"summaryText"`
	FeaturedImage   string `json:"featuredImage"`
	PublishDate     string `json:"publishDate"`
	AuthorName      string `json:"authorName"`
	MetaDescription string `json:"metaDescription"`
}

type BlogPage struct {
	Results []BlogPost `json:"results"`
	Total   int        `json:"total"`
}

// ConnectionResult reports a HubSpot token check.
type ConnectionResult struct {
	OK    bool   `json:"ok"`
	Total int    `json:"total"`
	Error string `json:"error,omitempty"`
}
