package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/umbc-cmsc636/rent-analytics/internal/choropleth"
	"github.com/umbc-cmsc636/rent-analytics/internal/config"
	"github.com/umbc-cmsc636/rent-analytics/internal/dataset"
	"github.com/umbc-cmsc636/rent-analytics/internal/fetcher"
)

// newOpener builds the scheme-dispatching fetcher from the fetch settings.
func newOpener(c *config.Config) *fetcher.Multi {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	return fetcher.NewMulti(
		fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: c.Fetch.MaxRetries,
		},
		fetcher.FTPOptions{Timeout: timeout},
	)
}

func sourcesFrom(d config.DataConfig) dataset.Sources {
	return dataset.Sources{
		Counties:   d.CountiesURL,
		States:     d.StatesURL,
		Adjacency:  d.AdjacencyURL,
		CountyGeo:  d.CountyGeoURL,
		StateGeo:   d.StateGeoURL,
		Dictionary: d.DictionaryURL,
	}
}

func styleFrom(s config.StyleConfig) choropleth.Style {
	return choropleth.Style{
		Background:  s.Background,
		Text:        s.Text,
		Colorscale:  s.Colorscale,
		Scope:       s.Scope,
		BorderColor: s.BorderColor,
	}.WithDefaults()
}

// loadBundle fetches and enriches every dataset named in the config.
func loadBundle(ctx context.Context, c *config.Config, o fetcher.Opener) (*dataset.Bundle, error) {
	opts := dataset.DefaultOptions()
	opts.Transform.ExcludeSelf = c.Data.ExcludeSelfAdjacency

	b, err := dataset.Load(ctx, o, sourcesFrom(c.Data), opts)
	if err != nil {
		return nil, eris.Wrap(err, "load datasets")
	}
	return b, nil
}
