package planner

import (
	"testing"

	"github.com/plantdata/finsbridge/internal/config"
)

func tag(name string, area config.MemoryArea, addr uint32, dt config.DataType) config.TagMapping {
	return config.TagMapping{TagName: name, Area: area, Address: addr, Type: dt}
}

func TestBuild_ThreeContiguousPlusOneSingle(t *testing.T) {
	tags := []config.TagMapping{
		tag("D100", config.AreaD, 100, config.TypeInt16),
		tag("D101", config.AreaD, 101, config.TypeInt16),
		tag("D102", config.AreaD, 102, config.TypeInt16),
		tag("D200", config.AreaD, 200, config.TypeInt16),
	}

	groups := Build(tags)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if !groups[0].IsBatch() || len(groups[0].Tags) != 3 {
		t.Errorf("group[0] = %+v, want batch of 3", groups[0])
	}
	if groups[0].Tags[0].TagName != "D100" || groups[0].Tags[2].TagName != "D102" {
		t.Errorf("group[0] order wrong: %+v", groups[0].Tags)
	}
	if groups[1].IsBatch() || groups[1].Tags[0].TagName != "D200" {
		t.Errorf("group[1] = %+v, want single D200", groups[1])
	}
}

func TestBuild_BatchOfOneIsSingle(t *testing.T) {
	tags := []config.TagMapping{tag("D100", config.AreaD, 100, config.TypeInt16)}
	groups := Build(tags)
	if len(groups) != 1 || groups[0].IsBatch() {
		t.Fatalf("expected one non-batch group, got %+v", groups)
	}
}

func TestBuild_DifferentMemoryAreaBreaksRun(t *testing.T) {
	tags := []config.TagMapping{
		tag("d1", config.AreaD, 1, config.TypeInt16),
		tag("h1", config.AreaH, 2, config.TypeInt16),
	}
	groups := Build(tags)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2 (different memory areas never merge)", len(groups))
	}
}

func TestBuild_32BitWordWidthRespected(t *testing.T) {
	tags := []config.TagMapping{
		tag("a", config.AreaD, 100, config.TypeInt32),
		tag("b", config.AreaD, 102, config.TypeInt32),
		tag("c", config.AreaD, 105, config.TypeInt32), // not contiguous: should start at 104
	}
	groups := Build(tags)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if len(groups[0].Tags) != 2 {
		t.Errorf("group[0] should contain a,b: %+v", groups[0].Tags)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	if groups := Build(nil); groups != nil {
		t.Errorf("Build(nil) = %v, want nil", groups)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	tags := []config.TagMapping{
		tag("a", config.AreaD, 1, config.TypeInt16),
		tag("b", config.AreaD, 2, config.TypeInt16),
	}
	g1 := Build(tags)
	g2 := Build(tags)
	if len(g1) != len(g2) || len(g1[0].Tags) != len(g2[0].Tags) {
		t.Errorf("Build is not idempotent: %+v vs %+v", g1, g2)
	}
}
