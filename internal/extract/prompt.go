package extract

import (
	"fmt"
	"time"
)

// buildExtractionPrompt renders the extraction instructions for one
// unit of input text. The current date is embedded so the model can
// resolve relative dates ("Friday", "end of next week") to absolute
// calendar dates.
func buildExtractionPrompt(input string, today time.Time) string {
	return fmt.Sprintf(`You are extracting actionable tasks from raw text (email bodies, meeting notes, chat fragments).

TODAY'S DATE: %s

INPUT TEXT:
%s

TASK:
Identify every actionable task in the input text and return it as structured JSON.

IMPORTANT GUIDELINES:
1. Extract only concrete, actionable tasks - things a person would put on a todo list
2. Titles must be imperative and self-contained, understandable without the source text
3. "priority" is LOW, MEDIUM, or HIGH; use HIGH only for explicit urgency, LOW only for explicit deferral, otherwise MEDIUM
4. "due_date" must be an absolute date in YYYY-MM-DD form; resolve relative dates against TODAY'S DATE; omit the field entirely when no date is stated
5. "estimated_hours" only when the text states or clearly implies effort; omit otherwise
6. "source" is a short tag for where the task came from, e.g. "email", "meeting notes", "chat"
7. "notes" carries context worth keeping, at most a sentence or two; omit when there is none
8. Statements of fact, opinions, and FYIs are NOT tasks
9. Do not merge distinct tasks into one, and do not split one task into several

EXAMPLES OF TASKS:
- "Can you send me the Q3 figures by Thursday?" -> title "Send the Q3 figures", due_date resolved from Thursday
- "We really need to fix the login timeout soon" -> title "Fix the login timeout", priority HIGH
- "Don't forget the dentist on the 12th" -> title "Go to the dentist appointment", due_date resolved

EXAMPLES OF NON-TASKS:
- "The deploy went fine yesterday" (statement of fact)
- "Thanks again for the help!" (pleasantry)
- "I think the new design looks better" (opinion)

OUTPUT FORMAT (JSON only, no markdown):
{
  "tasks": [
    {
      "title": "Call John about the quarterly report",
      "priority": "HIGH",
      "due_date": "2026-08-28",
      "estimated_hours": 0.5,
      "source": "email",
      "notes": "John asked twice already"
    }
  ],
  "summary": "One sentence describing what the input contained"
}

If the input contains no actionable tasks, return {"tasks": [], "summary": "..."} with the summary explaining why.

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`,
		today.Format("Monday, January 2, 2006"), input)
}
