package http

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var siteLanguages = []string{"en", "bn"}

type sitePage struct {
	path       string
	changeFreq string
	priority   float64
}

var sitePages = []sitePage{
	{path: "", changeFreq: "daily", priority: 1.0},
	{path: "/about", changeFreq: "weekly", priority: 0.8},
	{path: "/features", changeFreq: "weekly", priority: 0.9},
}

// referenceSites son los sitios hermanos de Team AX que se listan para indexación cruzada.
var referenceSites = []sitePage{
	{path: "https://team-ax.top", changeFreq: "weekly", priority: 0.9},
	{path: "https://portfolio.team-ax.top", changeFreq: "weekly", priority: 0.8},
}

// SiteHandler sirve robots.txt y sitemap.xml del sitio público.
type SiteHandler struct {
	logger  *zap.Logger
	baseURL string
	now     func() time.Time
}

func NewSiteHandler(logger *zap.Logger, baseURL string) *SiteHandler {
	return &SiteHandler{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

type xmlURLSet struct {
	XMLName    xml.Name `xml:"urlset"`
	Xmlns      string   `xml:"xmlns,attr"`
	XmlnsXhtml string   `xml:"xmlns:xhtml,attr"`
	XmlnsImage string   `xml:"xmlns:image,attr"`
	URLs       []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc        string         `xml:"loc"`
	LastMod    string         `xml:"lastmod"`
	ChangeFreq string         `xml:"changefreq"`
	Priority   string         `xml:"priority"`
	Alternates []xmlAlternate `xml:"xhtml:link"`
	Image      *xmlImage      `xml:"image:image,omitempty"`
}

type xmlAlternate struct {
	Rel      string `xml:"rel,attr"`
	HrefLang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

type xmlImage struct {
	Loc     string `xml:"image:loc"`
	Title   string `xml:"image:title"`
	Caption string `xml:"image:caption"`
}

// buildSitemap arma el sitemap con alternativas por idioma para cada página.
func buildSitemap(baseURL string, now time.Time) ([]byte, error) {
	lastMod := now.UTC().Format(time.RFC3339)
	set := xmlURLSet{
		Xmlns:      "http://www.sitemaps.org/schemas/sitemap/0.9",
		XmlnsXhtml: "http://www.w3.org/1999/xhtml",
		XmlnsImage: "http://www.google.com/schemas/sitemap-image/1.1",
	}
	for _, page := range sitePages {
		loc := baseURL + page.path
		u := xmlURL{
			Loc:        loc,
			LastMod:    lastMod,
			ChangeFreq: page.changeFreq,
			Priority:   fmt.Sprintf("%.1f", page.priority),
			Image: &xmlImage{
				Loc:     baseURL + "/og-image.jpg",
				Title:   "Reze AI - Advanced AI Assistant",
				Caption: "Reze AI is your intelligent AI assistant from Team AX Inc. supporting multiple languages",
			},
		}
		for _, lang := range siteLanguages {
			u.Alternates = append(u.Alternates, xmlAlternate{
				Rel:      "alternate",
				HrefLang: lang,
				Href:     baseURL + "/" + lang + page.path,
			})
		}
		u.Alternates = append(u.Alternates, xmlAlternate{Rel: "alternate", HrefLang: "x-default", Href: loc})
		set.URLs = append(set.URLs, u)
	}
	for _, ref := range referenceSites {
		set.URLs = append(set.URLs, xmlURL{
			Loc:        ref.path,
			LastMod:    lastMod,
			ChangeFreq: ref.changeFreq,
			Priority:   fmt.Sprintf("%.1f", ref.priority),
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func buildRobots(baseURL string) string {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n\n")
	b.WriteString("Allow: /$\nAllow: /about$\nAllow: /features$\nAllow: /api/sitemap.xml\n\n")
	b.WriteString("Disallow: /api/\nDisallow: /_next/\nDisallow: /favicon.ico\nDisallow: /*.json$\n\n")
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", baseURL)
	for _, ref := range referenceSites {
		fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", ref.path)
	}
	b.WriteString("\n")
	b.WriteString("Crawl-delay: 1\n\n")
	b.WriteString("User-agent: Googlebot\nAllow: /\nCrawl-delay: 0.5\n\n")
	b.WriteString("User-agent: Bingbot\nAllow: /\nCrawl-delay: 1\n\n")
	b.WriteString("User-agent: Slurp\nAllow: /\nCrawl-delay: 1\n")
	return b.String()
}

// Robots maneja GET /robots.txt.
func (h *SiteHandler) Robots(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400, s-maxage=86400")
	c.String(http.StatusOK, buildRobots(h.baseURL))
}

// Sitemap maneja GET /sitemap.xml.
func (h *SiteHandler) Sitemap(c *gin.Context) {
	body, err := buildSitemap(h.baseURL, h.now())
	if err != nil {
		h.logger.Error("build sitemap failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600, s-maxage=3600")
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}
