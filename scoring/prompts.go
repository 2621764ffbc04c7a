package scoring

import (
	"encoding/json"
	"fmt"
)

const coachNotes = `Here are some notes about the data:
The transcript is a JSON object where the key is the finish time in seconds of the value in the recorded video and the value is the actual text the user spoke.
The questions are the questions the interviewer asks, given one at a time.
The behaviors are the dominant facial action units of each clip with their prominence.
The emotions are a list of buckets keyed by timestamp, each mapping an emotion to its prominence.`

const scoringSystem = `The response should be strictly less than 70 words. You are an interview coach.
Your task is to evaluate the performance and give specific feedback on how the user performs in their interview.
Make your performance assessment based on a variety of data sources including facial expressions, quality and depth of answers, and emotions.
Outline both strengths and weaknesses of the user including ways to improve. Be extremely thorough and specific in your feedback.
` + coachNotes

const scoringUser = `Match the question, '%s', with the response present in the transcript, '%s'.
Make use of the timestamps, which are the keys in the transcript, to identify which questions the transcript data points belong to.
Also, consider the behaviors, '%s', of the user as they answer the questions.
And take into account the emotions, '%s', of the user as they answer these interview questions.
Provide comprehensive feedback to the user on their interview performance.
Address things they did well and areas for improvement. Reference the quality, relevance, and completeness of the response as well as the user's emotions and behaviors.
Assign a score out of 40 for the response quality based on psychological literature on successful interviews.`

const narrativeSystem = `The response should be strictly less than 70 words. You are an interview coach giving a question by question review.
Your task is to evaluate the performance and give specific feedback on how the user performs in their interview, using facial expressions, quality and depth of answers, and emotions.
Outline both strengths and weaknesses of the user including ways to improve.
` + coachNotes

const narrativeUser = `The response should be strictly less than 70 words. Match the question, %s, with the responses present in the transcript, %s.
Make use of the time stamps which are the keys in the transcript to identify which questions the transcript data points belong to.
Also take into account the behaviors, %s, and the emotions, %s, of the user as they answer the questions.
Talk about things they did well as well as things they need to improve upon, referencing the response content, its relevance and its quality together with the user's emotions and behaviors.
Give them a breakdown of what they can do better and an overall interview success score based on psychological literature on successful interviews.`

// promptData is the serialized context shared by every prompt of one request.
type promptData struct {
	transcript string
	behaviors  string
	emotions   string
}

func newPromptData(in Input) promptData {
	return promptData{
		transcript: compact(in.Transcript),
		behaviors:  compact(in.Behaviors),
		emotions:   compact(in.Emotions),
	}
}

func (d promptData) scoring(question string) string {
	return fmt.Sprintf(scoringUser, question, d.transcript, d.behaviors, d.emotions)
}

func (d promptData) narrative(question string) string {
	return fmt.Sprintf(narrativeUser, question, d.transcript, d.behaviors, d.emotions)
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
