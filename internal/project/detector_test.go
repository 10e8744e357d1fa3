package project

import (
	"path/filepath"
	"testing"

	"github.com/archivum/archivum/internal/testfs"
	"github.com/archivum/archivum/internal/types"
)

const pomXML = `<?xml version="1.0"?>
<project>
  <groupId>com.x</groupId>
  <artifactId>p</artifactId>
  <version>1.0</version>
</project>`

// TestMavenIdentity tests identifier derivation from a full pom.xml.
func TestMavenIdentity(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "pom.xml", Content: pomXML}},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("maven project not detected")
	}
	if identity.Type != types.ProjectMaven {
		t.Errorf("Type = %v, want MAVEN", identity.Type)
	}
	if identity.Identifier != "com.x:p:1.0" {
		t.Errorf("Identifier = %q, want com.x:p:1.0", identity.Identifier)
	}
	if identity.Name != "p" || identity.Version != "1.0" || identity.GroupID != "com.x" {
		t.Errorf("identity = %+v", identity)
	}
}

// TestMavenUnknownFields tests that missing groupId/version fall back to
// "unknown" while artifactId stays required.
func TestMavenUnknownFields(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "pom.xml", Content: `<project><artifactId>p</artifactId></project>`}},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("maven project not detected")
	}
	if identity.Identifier != "unknown:p:unknown" {
		t.Errorf("Identifier = %q, want unknown:p:unknown", identity.Identifier)
	}

	noArtifact := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "pom.xml", Content: `<project><groupId>g</groupId></project>`}},
	})
	if _, ok := (mavenDetector{}).Detect(noArtifact); ok {
		t.Error("pom without artifactId should be unusable")
	}
}

// TestNPMIdentity tests package.json derivation, including scoped names.
func TestNPMIdentity(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "package.json", Content: `{"name":"@o/pkg","version":"2.0.0"}`}},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("npm project not detected")
	}
	if identity.Type != types.ProjectNPM {
		t.Errorf("Type = %v, want NPM", identity.Type)
	}
	if identity.Identifier != "@o/pkg:2.0.0" {
		t.Errorf("Identifier = %q, want @o/pkg:2.0.0", identity.Identifier)
	}
}

// TestGoModuleIdentity tests go.mod derivation.
func TestGoModuleIdentity(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "go.mod", Content: "module github.com/acme/tool\n\ngo 1.22\n"}},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("go project not detected")
	}
	if identity.Type != types.ProjectGo {
		t.Errorf("Type = %v, want GO", identity.Type)
	}
	if identity.Name != "tool" {
		t.Errorf("Name = %q, want tool", identity.Name)
	}
	if identity.Identifier != "github.com/acme/tool" {
		t.Errorf("Identifier = %q", identity.Identifier)
	}
}

// TestRustIdentity tests Cargo.toml derivation.
func TestRustIdentity(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "Cargo.toml", Content: "[package]\nname = \"crab\"\nversion = \"0.3.1\"\n"}},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("rust project not detected")
	}
	if identity.Type != types.ProjectRust {
		t.Errorf("Type = %v, want RUST", identity.Type)
	}
	if identity.Identifier != "crab:0.3.1" {
		t.Errorf("Identifier = %q, want crab:0.3.1", identity.Identifier)
	}
}

// TestBuildSystemBeatsGit tests chain priority: a pom.xml wins even when the
// folder also looks like a git repository.
func TestBuildSystemBeatsGit(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "pom.xml", Content: pomXML},
			{Path: ".git/HEAD", Content: "ref: refs/heads/main\n"},
		},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("project not detected")
	}
	if identity.Type != types.ProjectMaven {
		t.Errorf("Type = %v, want MAVEN to win over git", identity.Type)
	}
}

// TestGenericDetection tests the source-file heuristic fallback.
func TestGenericDetection(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "src/a.c", Content: "int main(){}"},
			{Path: "src/b.c", Content: ""},
			{Path: "src/c.h", Content: ""},
		},
	})

	identity, ok := NewChain().Detect(root)
	if !ok {
		t.Fatal("generic project not detected")
	}
	if identity.Type != types.ProjectGeneric {
		t.Errorf("Type = %v, want GENERIC", identity.Type)
	}

	// A folder of documents is not a project.
	docs := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{{Path: "letter.docx", Content: "d"}},
	})
	if _, ok := NewChain().Detect(docs); ok {
		t.Error("document folder should not be detected")
	}
}

// TestNestedProjectSuppression tests that a project inside a detected root
// is never reported separately.
func TestNestedProjectSuppression(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "outer/pom.xml", Content: pomXML},
			{Path: "outer/module/package.json", Content: `{"name":"inner","version":"1.0.0"}`},
			{Path: "elsewhere/package.json", Content: `{"name":"other","version":"1.0.0"}`},
		},
	})

	projects := NewScanner(NewChain(), nil).Scan(root, "src-1")
	if len(projects) != 2 {
		t.Fatalf("detected %d projects, want 2", len(projects))
	}
	roots := map[string]types.ProjectType{}
	for _, p := range projects {
		roots[filepath.Base(p.RootPath)] = p.Type
	}
	if roots["outer"] != types.ProjectMaven {
		t.Errorf("outer = %v, want MAVEN", roots["outer"])
	}
	if roots["elsewhere"] != types.ProjectNPM {
		t.Errorf("elsewhere = %v, want NPM", roots["elsewhere"])
	}
}

// TestContentHash tests order independence and the empty sentinel.
func TestContentHash(t *testing.T) {
	a := ContentHash([]string{"aaa", "bbb", "ccc"})
	b := ContentHash([]string{"ccc", "aaa", "bbb"})
	if a != b {
		t.Errorf("ContentHash is order-dependent: %s vs %s", a, b)
	}
	if a == ContentHash([]string{"aaa", "bbb"}) {
		t.Error("different hash sets should differ")
	}
	if ContentHash(nil) != "empty" {
		t.Errorf("ContentHash(nil) = %q, want empty", ContentHash(nil))
	}
}

// TestProjectCounts tests file counting with build-output exclusion.
func TestProjectCounts(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "go.mod", Content: "module example.com/x\n"},
			{Path: "main.go", Content: "package main"},
			{Path: "vendor/dep/dep.go", Content: "package dep"},
			{Path: "README.md", Content: "# x"},
		},
	})

	projects := NewScanner(NewChain(), map[string]string{
		filepath.Join(root, "main.go"): "deadbeef",
	}).Scan(root, "src-1")
	if len(projects) != 1 {
		t.Fatalf("detected %d projects, want 1", len(projects))
	}

	p := projects[0]
	if p.TotalFileCount != 3 { // go.mod, main.go, README.md; vendor excluded
		t.Errorf("TotalFileCount = %d, want 3", p.TotalFileCount)
	}
	if p.SourceFileCount != 1 {
		t.Errorf("SourceFileCount = %d, want 1", p.SourceFileCount)
	}
	if p.ContentHash == "empty" || p.ContentHash == "" {
		t.Errorf("ContentHash = %q, want digest over main.go's hash", p.ContentHash)
	}
}
