package extract

import (
	"strings"
	"testing"
)

func TestTextFromPDF_EmptyData(t *testing.T) {
	if _, err := TextFromPDF(nil); err == nil {
		t.Fatal("expected error for empty pdf data")
	}
}

func TestTextFromPDF_NotAPDF(t *testing.T) {
	_, err := TextFromPDF([]byte("this is a csv, not a pdf"))
	if err == nil {
		t.Fatal("expected error for non-pdf payload")
	}
	if strings.Contains(err.Error(), "empty pdf data") {
		t.Fatalf("wrong error path: %v", err)
	}
}
