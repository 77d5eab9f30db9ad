package planner

import (
	"path/filepath"
	"testing"
)

func TestPlanPoster_WithPosterPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pictures", "movie_posters")
	opts := PosterOptions{PosterDir: dir, Download: true}

	p := PlanPoster(opts, 42, "/x.jpg")
	if p.SourceURL != "https://image.tmdb.org/t/p/w500/x.jpg" {
		t.Fatalf("SourceURL 不符合预期：%q", p.SourceURL)
	}
	if p.LocalPath != filepath.Join(dir, "42.jpg") {
		t.Fatalf("LocalPath 不符合预期：%q", p.LocalPath)
	}
	if p.Recorded != "movie_posters/42.jpg" {
		t.Fatalf("Recorded 不符合预期：%q", p.Recorded)
	}
	if !p.Download {
		t.Fatalf("期望 Download=true")
	}
}

func TestPlanPoster_NoPosterPathUsesDefault(t *testing.T) {
	for _, pp := range []string{"", "   "} {
		p := PlanPoster(PosterOptions{PosterDir: t.TempDir(), Download: true}, 7, pp)
		if p.Recorded != "movie_posters/default.png" {
			t.Fatalf("期望默认 poster，实际 %q", p.Recorded)
		}
		if p.Download || p.SourceURL != "" || p.LocalPath != "" {
			t.Fatalf("无 poster_path 时不应规划下载：%+v", p)
		}
	}
}

func TestPlanPoster_DownloadDisabledStillRecords(t *testing.T) {
	p := PlanPoster(PosterOptions{PosterDir: t.TempDir(), Download: false}, 42, "/x.jpg")
	if p.Download {
		t.Fatalf("期望 Download=false")
	}
	if p.Recorded != "movie_posters/42.jpg" {
		t.Fatalf("Recorded 不符合预期：%q", p.Recorded)
	}
}

func TestPlanPoster_CustomBaseAndPrefix(t *testing.T) {
	opts := PosterOptions{
		ImageBaseURL:  "http://127.0.0.1:9000/img/",
		PosterDir:     t.TempDir(),
		PosterPrefix:  "posters",
		DefaultPoster: "posters/none.png",
		Download:      true,
	}

	p := PlanPoster(opts, 5, "abc.png")
	if p.SourceURL != "http://127.0.0.1:9000/img/abc.png" {
		t.Fatalf("SourceURL 不符合预期：%q", p.SourceURL)
	}
	if p.Recorded != "posters/5.jpg" {
		t.Fatalf("Recorded 不符合预期：%q", p.Recorded)
	}
	if got := PlanPoster(opts, 5, "").Recorded; got != "posters/none.png" {
		t.Fatalf("默认 poster 不符合预期：%q", got)
	}
}
