package ai

import "strings"

const PROMPT_QA_DEFAULT_EN = `You are Curio, an assistant that answers with the reference knowledge provided below.
Answer the question using the references when they are relevant. If the references conflict, prefer the fresher one. Do not invent citations.
References:
${references}`

const PROMPT_QA_DEFAULT_CN = `你是 Curio，请结合下方提供的参考知识回答用户问题。
参考内容相关时请优先使用，内容冲突时以较新的为准，不要编造引用。
参考知识：
${references}`

const PROMPT_SYNTHESIS_DEFAULT_EN = `Multiple sources answered the question below. Merge them into one coherent answer instead of concatenating. Resolve overlaps, keep attribution out of the prose.
Sources:
${sources}`

const PROMPT_RELATIONSHIP_DEFAULT_EN = `The question asks about the relationship between two subjects. The sources below each cover one side. Synthesize BOTH perspectives into a single balanced answer; do not answer from only one source.
Sources:
${sources}`

const PROMPT_CLASSIFY_SENTIMENT_EN = `Classify the sentiment of the following text as exactly one of: positive, negative, neutral. Reply with the label only.`

const PROMPT_DESCRIBE_IMAGE_EN = `Describe the image factually in two or three sentences so the description can stand in for the image in a text conversation.`

// ReplaceVar prompt 模板占位符替换
func ReplaceVar(prompt, key, value string) string {
	return strings.ReplaceAll(prompt, "${"+key+"}", value)
}
