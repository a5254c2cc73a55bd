package payload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
)

func TestAggregate_SingleFileVerbatim(t *testing.T) {
	unit := &buildunit.Unit{Name: "QAction_1", Sources: []buildunit.SourceFile{{Name: "QAction_1.cs", Content: "using Characterø;"}}}
	assert.Equal(t, "using Characterø;", Aggregate(unit))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Equal(t, "", Aggregate(&buildunit.Unit{Name: "X"}))
}

func TestAggregate_MultipleFilesMainFirst(t *testing.T) {
	unit := &buildunit.Unit{
		Name: "QAction_3",
		Sources: []buildunit.SourceFile{
			{Name: "Class1.cs", Content: "class Class1 {}\n"},
			{Name: "QAction_3.cs", Content: "class QAction_3 {}\n"},
			{Name: `SubDir\Class2.cs`, Content: "class Class2 {}\n"},
		},
	}

	want := "\n//---------------------------------\n// QAction_3.cs\n//---------------------------------\nclass QAction_3 {}\n" +
		"\n//---------------------------------\n// Class1.cs\n//---------------------------------\nclass Class1 {}\n" +
		"\n//---------------------------------\n// SubDir\\Class2.cs\n//---------------------------------\nclass Class2 {}\n"
	assert.Equal(t, want, Aggregate(unit))
}

func TestAggregate_NoMainFileKeepsDeclaredOrder(t *testing.T) {
	unit := &buildunit.Unit{
		Name: "Script_1",
		Sources: []buildunit.SourceFile{
			{Name: "B.cs", Content: "b"},
			{Name: "A.cs", Content: "a"},
		},
	}
	got := Aggregate(unit)
	assert.Less(t, strings.Index(got, "// B.cs"), strings.Index(got, "// A.cs"))
}

func TestAggregate_MainFileInSubdirectory(t *testing.T) {
	unit := &buildunit.Unit{
		Name: "Main",
		Sources: []buildunit.SourceFile{
			{Name: "Other.cs", Content: "o"},
			{Name: "src/Main.cs", Content: "m"},
		},
	}
	got := Aggregate(unit)
	assert.Less(t, strings.Index(got, "// src/Main.cs"), strings.Index(got, "// Other.cs"))
}
