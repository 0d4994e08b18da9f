package twins

import (
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const dogImagesPerBreed = 120

var dogBreeds = map[string][]string{
	"akita":     {},
	"bulldog":   {"boston", "english", "french"},
	"greyhound": {"italian"},
	"hound":     {"afghan", "basset", "blood", "english", "ibizan", "plott", "walker"},
	"mastiff":   {"bull", "english", "tibetan"},
	"pug":       {},
	"sheepdog":  {"english", "indian", "shetland"},
}

type dogsTwin struct {
	// images maps "breed" and "breed-sub" to image URLs.
	images map[string][]string
}

func newDogsTwin() *dogsTwin {
	t := &dogsTwin{images: make(map[string][]string)}
	for breed, subs := range dogBreeds {
		dirs := []string{breed}
		if len(subs) > 0 {
			dirs = dirs[:0]
			for _, sub := range subs {
				dirs = append(dirs, breed+"-"+sub)
			}
		}
		for _, dir := range dirs {
			var urls []string
			for i := 0; i < dogImagesPerBreed; i++ {
				urls = append(urls, fmt.Sprintf("https://images.dog.ceo/breeds/%s/n%08d.jpg", dir, i))
			}
			t.images[dir] = urls
			t.images[breed] = append(t.images[breed], urls...)
		}
	}
	return t
}

// Dogs serves the dog image API routes under /breeds and /breed.
func Dogs() http.Handler {
	r := newRouter()
	newDogsTwin().routes(r)
	return r
}

func (t *dogsTwin) routes(r chi.Router) {
	r.Get("/breeds/list/all", t.listAll)
	r.Get("/breed/{breed}/images", t.all)
	r.Get("/breed/{breed}/images/random", t.random)
	r.Get("/breed/{breed}/images/random/{n}", t.randomN)
	r.Get("/breed/{breed}/{sub}/images", t.all)
	r.Get("/breed/{breed}/{sub}/images/random", t.random)
}

func dogSuccess(w http.ResponseWriter, message any) {
	JSON(w, http.StatusOK, map[string]any{"message": message, "status": "success"})
}

func dogNotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": message, "code": 404})
}

func (t *dogsTwin) listAll(w http.ResponseWriter, r *http.Request) {
	dogSuccess(w, dogBreeds)
}

// lookup resolves the breed and optional sub-breed of the request.
func (t *dogsTwin) lookup(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	breed := chi.URLParam(r, "breed")
	subs, ok := dogBreeds[breed]
	if !ok {
		dogNotFound(w, "Breed not found (main breed does not exist)")
		return nil, false
	}
	key := breed
	if sub := chi.URLParam(r, "sub"); sub != "" {
		i := sort.SearchStrings(subs, sub)
		if i == len(subs) || subs[i] != sub {
			dogNotFound(w, "Breed not found (sub breed does not exist)")
			return nil, false
		}
		key = breed + "-" + sub
	}
	return t.images[key], true
}

func (t *dogsTwin) all(w http.ResponseWriter, r *http.Request) {
	if images, ok := t.lookup(w, r); ok {
		dogSuccess(w, images)
	}
}

func (t *dogsTwin) random(w http.ResponseWriter, r *http.Request) {
	if images, ok := t.lookup(w, r); ok {
		dogSuccess(w, images[rand.Intn(len(images))])
	}
}

func (t *dogsTwin) randomN(w http.ResponseWriter, r *http.Request) {
	images, ok := t.lookup(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		n = 1
	}
	n = min(n, len(images))
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(images))[:n] {
		out = append(out, images[i])
	}
	dogSuccess(w, out)
}
