package twins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const placeholderPosts = 100

type post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func fakePost(id int) post {
	return post{
		ID:     id,
		UserID: (id-1)/10 + 1,
		Title:  fmt.Sprintf("post title %d", id),
		Body:   fmt.Sprintf("post body %d", id),
	}
}

// Placeholder serves the fake posts API. Writes are echoed, never stored.
func Placeholder() http.Handler {
	r := newRouter()
	placeholderRoutes(r)
	return r
}

func placeholderRoutes(r chi.Router) {
	r.Get("/posts", listPosts)
	r.Post("/posts", createPost)
	r.Get("/posts/{id}", getPost)
	r.Put("/posts/{id}", updatePost)
}

func postID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id >= 1 && id <= placeholderPosts
}

func listPosts(w http.ResponseWriter, r *http.Request) {
	posts := make([]post, 0, placeholderPosts)
	for id := 1; id <= placeholderPosts; id++ {
		posts = append(posts, fakePost(id))
	}
	JSON(w, http.StatusOK, posts)
}

func getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		JSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	JSON(w, http.StatusOK, fakePost(id))
}

func createPost(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = map[string]any{}
	}
	body["id"] = placeholderPosts + 1
	JSON(w, http.StatusCreated, body)
}

func updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot update a post that does not exist"})
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = map[string]any{}
	}
	body["id"] = id
	JSON(w, http.StatusOK, body)
}
