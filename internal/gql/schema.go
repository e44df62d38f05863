// ABOUTME: GraphQL schema over the read model: Feed, Entry, FeedHistory,
// ABOUTME: and the graph edges between them, with since/pagination args.

package gql

import (
	"github.com/graphql-go/graphql"

	"github.com/feedspool/feedspool/internal/models"
	"github.com/feedspool/feedspool/internal/storage"
)

// APIVersion is reported by the root apiVersion field.
const APIVersion = "1.0"

type resolver struct {
	store storage.Store
}

// NewSchema builds the query schema backed by the given store. Store
// failures surface as GraphQL field errors.
func NewSchema(store storage.Store) (graphql.Schema, error) {
	r := &resolver{store: store}

	paginationInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "Pagination",
		Fields: graphql.InputObjectConfigFieldMap{
			"skip": &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"take": &graphql.InputObjectFieldConfig{Type: graphql.Int},
		},
	})
	listArgs := graphql.FieldConfigArgument{
		"since":      &graphql.ArgumentConfig{Type: graphql.String},
		"pagination": &graphql.ArgumentConfig{Type: paginationInput},
	}

	historyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FeedHistory",
		Fields: graphql.Fields{
			"id":           historyStr(func(h *models.FeedHistory) string { return h.ID }),
			"feedId":       historyStr(func(h *models.FeedHistory) string { return h.FeedID }),
			"createdAt":    historyStr(func(h *models.FeedHistory) string { return h.CreatedAt }),
			"status":       historyStr(func(h *models.FeedHistory) string { return h.Status }),
			"src":          historyStr(func(h *models.FeedHistory) string { return h.Src }),
			"etag":         historyStr(func(h *models.FeedHistory) string { return h.ETag }),
			"lastModified": historyStr(func(h *models.FeedHistory) string { return h.LastModified }),
			"errorText":    historyStr(func(h *models.FeedHistory) string { return h.ErrorText }),
			"isError": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					h, _ := p.Source.(*models.FeedHistory)
					if h == nil {
						return false, nil
					}
					return h.IsError, nil
				},
			},
		},
	})

	entryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Entry",
		Fields: graphql.Fields{
			"id":         entryStr(func(e *models.Entry) string { return e.ID }),
			"feedId":     entryStr(func(e *models.Entry) string { return e.FeedID }),
			"title":      entryStr(func(e *models.Entry) string { return e.Title }),
			"link":       entryStr(func(e *models.Entry) string { return e.Link }),
			"summary":    entryStr(func(e *models.Entry) string { return e.Summary }),
			"content":    entryStr(func(e *models.Entry) string { return e.Content }),
			"published":  entryStr(func(e *models.Entry) string { return e.Published }),
			"updated":    entryStr(func(e *models.Entry) string { return e.Updated }),
			"json":       entryStr(func(e *models.Entry) string { return e.JSON }),
			"createdAt":  entryStr(func(e *models.Entry) string { return e.CreatedAt }),
			"modifiedAt": entryStr(func(e *models.Entry) string { return e.ModifiedAt }),
			"defunct": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, _ := p.Source.(*models.Entry)
					if e == nil {
						return false, nil
					}
					return e.Defunct, nil
				},
			},
		},
	})

	feedType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feed",
		Fields: graphql.Fields{
			"id":                 feedStr(func(f *models.Feed) string { return f.ID }),
			"url":                feedStr(func(f *models.Feed) string { return f.URL }),
			"title":              feedStr(func(f *models.Feed) string { return f.Title }),
			"subtitle":           feedStr(func(f *models.Feed) string { return f.Subtitle }),
			"link":               feedStr(func(f *models.Feed) string { return f.Link }),
			"published":          feedStr(func(f *models.Feed) string { return f.Published }),
			"updated":            feedStr(func(f *models.Feed) string { return f.Updated }),
			"lastEntryPublished": feedStr(func(f *models.Feed) string { return f.LastEntryPublished }),
			"json":               feedStr(func(f *models.Feed) string { return f.JSON }),
			"createdAt":          feedStr(func(f *models.Feed) string { return f.CreatedAt }),
			"modifiedAt":         feedStr(func(f *models.Feed) string { return f.ModifiedAt }),
		},
	})

	feedType.AddFieldConfig("entries", &graphql.Field{
		Type: graphql.NewList(entryType),
		Args: listArgs,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(*models.Feed)
			if f == nil {
				return nil, nil
			}
			rows, err := r.store.ListEntriesByFeed(f.ID, sinceArg(p), pageArg(p))
			if err != nil {
				return nil, err
			}
			return entryPtrs(rows), nil
		},
	})
	feedType.AddFieldConfig("history", &graphql.Field{
		Type: graphql.NewList(historyType),
		Args: listArgs,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(*models.Feed)
			if f == nil {
				return nil, nil
			}
			rows, err := r.store.ListHistoryByFeed(f.ID, sinceArg(p), pageArg(p))
			if err != nil {
				return nil, err
			}
			return historyPtrs(rows), nil
		},
	})
	entryType.AddFieldConfig("feed", &graphql.Field{
		Type: feedType,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			e, _ := p.Source.(*models.Entry)
			if e == nil {
				return nil, nil
			}
			return r.store.GetFeed(e.FeedID)
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"apiVersion": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return APIVersion, nil
				},
			},
			"feed": &graphql.Field{
				Type: feedType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return r.store.GetFeed(id)
				},
			},
			"feeds": &graphql.Field{
				Type: graphql.NewList(feedType),
				Args: listArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rows, err := r.store.ListFeeds(sinceArg(p), pageArg(p))
					if err != nil {
						return nil, err
					}
					return feedPtrs(rows), nil
				},
			},
			"entries": &graphql.Field{
				Type: graphql.NewList(entryType),
				Args: listArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rows, err := r.store.ListEntries(sinceArg(p), pageArg(p))
					if err != nil {
						return nil, err
					}
					return entryPtrs(rows), nil
				},
			},
		},
	})

	// Placeholder so clients introspecting for mutations get a schema,
	// not an error.
	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"apiVersion": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return APIVersion, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func sinceArg(p graphql.ResolveParams) string {
	since, _ := p.Args["since"].(string)
	return since
}

func pageArg(p graphql.ResolveParams) *storage.Page {
	raw, _ := p.Args["pagination"].(map[string]interface{})
	if raw == nil {
		return nil
	}
	page := &storage.Page{}
	if skip, ok := raw["skip"].(int); ok {
		page.Skip = &skip
	}
	if take, ok := raw["take"].(int); ok {
		page.Take = &take
	}
	return page
}

func feedStr(get func(*models.Feed) string) *graphql.Field {
	return &graphql.Field{
		Type: graphql.String,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(*models.Feed)
			if f == nil {
				return nil, nil
			}
			return get(f), nil
		},
	}
}

func entryStr(get func(*models.Entry) string) *graphql.Field {
	return &graphql.Field{
		Type: graphql.String,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			e, _ := p.Source.(*models.Entry)
			if e == nil {
				return nil, nil
			}
			return get(e), nil
		},
	}
}

func historyStr(get func(*models.FeedHistory) string) *graphql.Field {
	return &graphql.Field{
		Type: graphql.String,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			h, _ := p.Source.(*models.FeedHistory)
			if h == nil {
				return nil, nil
			}
			return get(h), nil
		},
	}
}

func feedPtrs(rows []models.Feed) []*models.Feed {
	out := make([]*models.Feed, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

func entryPtrs(rows []models.Entry) []*models.Entry {
	out := make([]*models.Entry, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

func historyPtrs(rows []models.FeedHistory) []*models.FeedHistory {
	out := make([]*models.FeedHistory, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}
