package agenda

import (
	"fmt"

	"google.golang.org/genai"
)

// stepSchema 约束模型只输出步骤数组
var stepSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"step_name":       {Type: genai.TypeString},
			"prompt_question": {Type: genai.TypeString},
			"allocated_time":  {Type: genai.TypeInteger},
		},
		Required:         []string{"step_name", "prompt_question", "allocated_time"},
		PropertyOrdering: []string{"step_name", "prompt_question", "allocated_time"}, // 固定字段输出顺序
	},
}

const promptTemplate = `You are a skilled facilitator who keeps group discussions moving.
Propose a step-by-step plan for a discussion on the topic and total time below.

# Topic
%s

# Total time
%d minutes

# Output rules
- Output a JSON array of steps.
- Each step has "step_name" (a short title), "prompt_question" (an open question addressed to the participants) and "allocated_time" (whole minutes).
- The allocated_time values must add up to exactly %d.
- Make each prompt_question concrete enough that participants know what to do next.`

func buildPrompt(topic string, totalDuration int) string {
	return fmt.Sprintf(promptTemplate, topic, totalDuration, totalDuration)
}
