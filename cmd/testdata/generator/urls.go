package generator

import (
	"io"
	"math/rand/v2"
	"strconv"
)

// URLGenerator emits request URLs the way an access log would record them:
// a handful of hot assets dominate, with a long tail of item pages.
type URLGenerator struct {
	rand *rand.Rand
}

var hosts = []string{
	"static.toptokens.test",
	"api.toptokens.test",
	"www.toptokens.test",
	"img.toptokens.test",
	"docs.toptokens.test",
}

var assets = []string{
	"/favicon.ico",
	"/robots.txt",
	"/app.js",
	"/app.css",
	"/healthz",
	"/v1/tokens",
	"/v1/runs",
}

func (g *URLGenerator) Init(r *rand.Rand) {
	g.rand = r
}

func (g *URLGenerator) WriteLine(w io.Writer) error {
	// Low indexes are picked far more often than high ones.
	host := hosts[g.rand.IntN(1+g.rand.IntN(len(hosts)))]

	var path string
	if g.rand.IntN(4) == 0 {
		path = "/items/" + strconv.Itoa(g.rand.IntN(5000))
	} else {
		path = assets[g.rand.IntN(1+g.rand.IntN(len(assets)))]
	}

	_, err := io.WriteString(w, "https://"+host+path+"\n")
	return err
}

func (g *URLGenerator) Description() string {
	return "Request URLs: a few hot assets per host plus a long tail of /items/<id> pages"
}

func (g *URLGenerator) DefaultCount() int64 {
	return 5e5
}
