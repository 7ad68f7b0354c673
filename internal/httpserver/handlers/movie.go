package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
)

// NoPlotAvailable is shown when the catalog has no plot for a title.
const NoPlotAvailable = "No plot available."

type movieDetailResponse struct {
	movieView
	Genre    string `json:"genre,omitempty"`
	Director string `json:"director,omitempty"`
	Actors   string `json:"actors,omitempty"`
	Plot     string `json:"plot"`
	Runtime  string `json:"runtime,omitempty"`
	Rated    string `json:"rated,omitempty"`
	Rating   string `json:"imdb_rating,omitempty"`
}

// MovieDetail returns the descriptive fields of one catalog key.
func MovieDetail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		detail, err := d.Catalog.Detail(r.Context(), key)
		if err != nil {
			writeError(w, d, err)
			return
		}

		plot := detail.Plot
		if plot == "" {
			plot = NoPlotAvailable
		}

		writeJSON(w, http.StatusOK, movieDetailResponse{
			movieView: newMovieView(detail.Movie, d.Bookmarks.IsBookmarked(detail.Key), d.PosterPlaceholder),
			Genre:     detail.Genre,
			Director:  detail.Director,
			Actors:    detail.Actors,
			Plot:      plot,
			Runtime:   detail.Runtime,
			Rated:     detail.Rated,
			Rating:    detail.Rating,
		})
	}
}
