package suggest

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an assistant for public procurement officers drafting administrative tender forms. Write in the formal register used in official tender documentation. Answer with the field text only, no preamble and no explanation.`

const rewordInstruction = `Provide an alternative formulation of the same field text, with different wording but the same substance.`

// fieldKeywords seeds the retrieval query per semantic field category.
var fieldKeywords = map[string]string{
	"cofinancer_requirements":  "cofinancer funding requirements reporting obligations",
	"technical_specifications": "technical specifications requirements standards",
	"eligibility_criteria":     "eligibility conditions participation requirements",
	"evaluation_criteria":      "evaluation criteria scoring award",
	"contract_terms":           "contract terms payment deadlines penalties",
	"subject_description":      "subject of procurement description scope",
}

// fieldGuidance is the per-field instruction block embedded in the
// generation prompt.
var fieldGuidance = map[string]string{
	"cofinancer_requirements":  "State the obligations the cofinancer imposes: visibility and publicity rules, reporting duties, audit access and retention periods.",
	"technical_specifications": "List the technical requirements as short verifiable statements. Reference standards where applicable.",
	"eligibility_criteria":     "State the conditions an economic operator must meet to participate, each as a separate sentence.",
	"evaluation_criteria":      "Describe how offers are scored: criteria, weights and the calculation method.",
	"contract_terms":           "State the key contractual terms: duration, payment terms, penalties and termination grounds.",
	"subject_description":      "Describe the subject of the procurement: what is being purchased, its scope and duration.",
}

// fallbackTexts guarantee a non-empty result when retrieval and generation
// both fail.
var fallbackTexts = map[string]string{
	"cofinancer_requirements":  "The contractor must comply with all requirements of the cofinancing agreement, including publicity, reporting and document retention obligations.",
	"technical_specifications": "The subject of the procurement must meet the technical requirements set out in the tender documentation and all applicable standards.",
	"eligibility_criteria":     "The tenderer must be registered for the relevant activity and must not be subject to any mandatory exclusion grounds.",
	"evaluation_criteria":      "Offers will be evaluated according to the criteria and weights published in the tender documentation.",
	"contract_terms":           "The contractual relationship is governed by the terms of the draft contract attached to the tender documentation.",
	"subject_description":      "The subject of the procurement is defined in the technical part of the tender documentation.",
}

const genericFallback = "Please refer to the tender documentation for the requirements applicable to this field."

func keywordsFor(fieldType string) string {
	if kw, ok := fieldKeywords[fieldType]; ok {
		return kw
	}
	return strings.ReplaceAll(fieldType, "_", " ")
}

func fallbackFor(fieldType string) string {
	if text, ok := fallbackTexts[fieldType]; ok {
		return text
	}
	return genericFallback
}

// buildPrompt assembles the generation prompt: context snapshot first, then
// the field-specific guidance, then the caller's free-text query.
func buildPrompt(snap Snapshot, fieldContext, fieldType, query string) string {
	var b strings.Builder

	b.WriteString("Form context:\n")
	writeContextLine(&b, "Project", snap.ProjectTitle)
	writeContextLine(&b, "Project description", snap.ProjectDescription)
	writeContextLine(&b, "Funding program", snap.FundingProgram)
	writeContextLine(&b, "Cofinancers", strings.Join(snap.Cofinancers, ", "))
	if snap.LotTitle != "" {
		writeContextLine(&b, "Current lot", fmt.Sprintf("%d: %s", snap.LotIndex, snap.LotTitle))
	}
	writeContextLine(&b, "Procurement type", snap.ProcurementType)
	writeContextLine(&b, "CPV code", snap.CPVCode)
	writeContextLine(&b, "Evaluation criteria", strings.Join(snap.EvaluationCriteria, ", "))

	b.WriteString("\nField: ")
	b.WriteString(fieldContext)
	b.WriteString("\n")
	if guidance, ok := fieldGuidance[fieldType]; ok {
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	if query != "" {
		b.WriteString("\nThe officer asks: ")
		b.WriteString(query)
		b.WriteString("\n")
	}
	b.WriteString("\nDraft the text for this field.")
	return b.String()
}

func writeContextLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString("- ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
