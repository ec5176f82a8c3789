// Package qna implements the append-only JSONL-backed question-and-
// answer store (qna/questions.jsonl): questions with answers, vote
// counts, and an accepted-answer marker, merged by set-union rather
// than last-writer-wins when the USB sync engine reconciles two
// copies.
package qna
