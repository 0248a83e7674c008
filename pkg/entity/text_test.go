package entity_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
)

var _ = Describe("BuildEmbeddingText", func() {
	It("renders customer name, occupation, city and email domain", func() {
		text := entity.BuildEmbeddingText(entity.Customers, map[string]any{
			"firstName":  "John",
			"lastName":   "Doe",
			"email":      "john.doe@Example.com",
			"occupation": "Software Engineer",
			"city":       "Lusaka",
			"phone":      "+260 97 000 0000",
		})
		Expect(text).To(Equal("Name: John Doe | Occupation: Software Engineer | City: Lusaka | Email domain: example.com"))
	})

	It("falls back to nested address fields", func() {
		text := entity.BuildEmbeddingText(entity.Customers, map[string]any{
			"name":    "Jane Banda",
			"address": map[string]any{"city": "Ndola"},
		})
		Expect(text).To(Equal("Name: Jane Banda | City: Ndola"))
	})

	It("renders claims with location address", func() {
		text := entity.BuildEmbeddingText(entity.Claims, map[string]any{
			"description": "Rear bumper   damaged\nin parking lot",
			"damageType":  "collision",
			"location":    map[string]any{"address": "Cairo Road, Lusaka"},
		})
		Expect(text).To(Equal("Description: Rear bumper damaged in parking lot | Damage type: collision | Location: Cairo Road, Lusaka"))
	})

	It("renders policy vehicles from nested or flat fields", func() {
		nested := entity.BuildEmbeddingText(entity.Policies, map[string]any{
			"vehicle":      map[string]any{"make": "Toyota", "model": "Corolla", "year": float64(2019)},
			"coverageType": "comprehensive",
		})
		flat := entity.BuildEmbeddingText(entity.Policies, map[string]any{
			"vehicleMake":  "Toyota",
			"vehicleModel": "Corolla",
			"vehicleYear":  "2019",
			"coverageType": "comprehensive",
		})
		Expect(nested).To(Equal("Vehicle: 2019 Toyota Corolla | Coverage: comprehensive"))
		Expect(flat).To(Equal(nested))
	})

	It("joins document tags", func() {
		text := entity.BuildEmbeddingText(entity.Documents, map[string]any{
			"fileName":      "report.pdf",
			"category":      "police report",
			"tags":          []any{"theft", "vehicle"},
			"extractedText": "Vehicle reported stolen on 3 May.",
		})
		Expect(text).To(Equal("Title: report.pdf | Category: police report | Tags: theft, vehicle | Content: Vehicle reported stolen on 3 May."))
	})

	It("is deterministic", func() {
		attrs := map[string]any{"description": "hail damage", "damageType": "weather"}
		Expect(entity.BuildEmbeddingText(entity.Claims, attrs)).
			To(Equal(entity.BuildEmbeddingText(entity.Claims, attrs)))
	})

	It("returns an empty string when no indexed field is present", func() {
		Expect(entity.BuildEmbeddingText(entity.Claims, map[string]any{"amount": 100})).To(BeEmpty())
	})

	It("truncates to the maximum rune count", func() {
		long := strings.Repeat("ü", entity.MaxEmbeddingTextRunes*2)
		text := entity.BuildEmbeddingText(entity.Documents, map[string]any{"extractedText": long})
		Expect(utf8.RuneCountInString(text)).To(Equal(entity.MaxEmbeddingTextRunes))
		Expect(utf8.ValidString(text)).To(BeTrue())
		Expect(text).To(HavePrefix("Content: "))
	})
})

var _ = Describe("TruncateRunes", func() {
	It("leaves short strings alone", func() {
		Expect(entity.TruncateRunes("abc", 5)).To(Equal("abc"))
	})

	It("cuts on rune boundaries", func() {
		Expect(entity.TruncateRunes("héllo", 2)).To(Equal("hé"))
	})

	It("returns empty for non-positive limits", func() {
		Expect(entity.TruncateRunes("abc", 0)).To(BeEmpty())
	})
})
