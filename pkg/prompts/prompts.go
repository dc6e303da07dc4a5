package prompts

// Templates use Go template syntax. JSON examples must never contain two
// consecutive opening braces.
var (
	PlanTemplate = `
You are an intelligent AI who specializes in planning. Solve the goal: "{{.Goal}}"
by decomposing it into an ordered chain of subtasks. Every subtask is one routine written in Starlark, a
small dialect of Python: no imports, no classes, no try/except, no f-strings, use string concatenation or "%" formatting.

Rules for the routines:
- The routine of a subtask defines exactly one function named like its tool_name.
- The first subtask has no predecessor. Its function takes no arguments, give every parameter a default value.
- Every later subtask names the tool_name of an earlier subtask as predecessor. Its function takes exactly one
  argument called previous_output, the dict returned by the predecessor.
- Every function returns a dict. Keep the keys consistent between a routine and the routine consuming it.
- Values defined at the top level of a routine stay visible to the routines that run after it.
- Use print or logger.info/logger.warning/logger.error to report progress and problems, the log is reviewed later.
- Only call the capabilities you list in capabilities_used, and only from this catalog:
{{.Capabilities}}
- When use_example_verbatim is true for a capability, copy its example_body as is.

Use as few subtasks as possible. Group work that needs the same capabilities into one subtask.

Provide your response in the following json format, escape newlines and quotes inside body:
{
    "goal": "{THE_GOAL}",
    "goal_rationale": "{HOW_THE_SUBTASKS_SOLVE_IT}",
    "subtasks": [
        {
            "tool_name": "{FUNCTION_NAME}",
            "predecessor": "{EARLIER_TOOL_NAME_OR_EMPTY}",
            "description": "{WHAT_IT_DOES}",
            "capabilities_used": ["{CAPABILITY_IDENTIFIER}"],
            "rationale": "{WHY_THIS_SUBTASK}",
            "body": "def {FUNCTION_NAME}(...):\n    ..."
        }
    ]
}
`

	EvaluationTemplate = `
You are an intelligent AI who reviews the work of other agents. The goal was: "{{.Goal}}"

This plan was executed:
{{.Plan}}

Here is the complete log of the execution, oldest line first:
{{.Logs}}

Decide whether the log shows that the goal has been achieved.

If it has, write the final answer for the user from the results in the log, then reply in the following json format:
{
    "satisfactory": true,
    "rationale": "{WHY_THE_GOAL_IS_ACHIEVED}",
    "final_answer": "{ANSWER_FOR_THE_USER}"
}

If it has not, diagnose what went wrong and write a complete new plan, with the same json format as the plan above,
that avoids the problem. Reply in the following json format:
{
    "satisfactory": false,
    "rationale": "{WHAT_WENT_WRONG}",
    "revised_plan": {"goal": "...", "goal_rationale": "...", "subtasks": []}
}

Return only the json.
`

	ToolSelectionTemplate = `
You decide which tool answers the last user request of the conversation.

Conversation, oldest message first:
{{.History}}

Tool list:
{{.Tools}}

Parameters already collected:
{{.ActiveParams}}

Steps:
1. Pick the tool that best serves the last request. If none fits, use "no_tool_selected" as selected_tool.
2. For every parameter of the tool, look for its value in the conversation. If a parameter has enum_values,
   the value must be one of them. Leave value null when unsure, never invent values.
3. If every parameter has a value, or the tool has no parameters, set completed to true.
4. Otherwise set completed to false and write clarifying_question, asking for the missing parameters in the
   language the user writes in.

Reply with only this json:
{
    "completed": false,
    "selected_tool": "{TOOL_NAME}",
    "active_params": [
        {"name": "{PARAM_NAME}", "type": "{PARAM_TYPE}", "description": "{PARAM_DESCRIPTION}", "enum_values": [], "value": null}
    ],
    "clarifying_question": "{QUESTION}"
}
`

	ParamsExtractionTemplate = `
You extract tool parameters from a conversation.

Conversation, oldest message first:
{{.History}}

Parameters:
{{.ActiveParams}}

For every parameter whose value is null, look for its value in the conversation. Respect the parameter type and,
when present, enum_values. Keep null when the value is not mentioned. Never change a parameter that already has
a value.

Reply with only this json, listing every parameter:
{
    "active_params": [
        {"name": "{PARAM_NAME}", "type": "{PARAM_TYPE}", "description": "{PARAM_DESCRIPTION}", "enum_values": [], "value": "{EXISTING_OR_EXTRACTED_VALUE_OR_NULL}"}
    ]
}
`

	AnswerWithParamsTemplate = `
You are a helpful assistant. The user asked for the tool "{{.Tool}}": {{.Description}}

Conversation, oldest message first:
{{.History}}

The tool was called with these parameters:
{{.Params}}

Answer the last user message using the tool and its parameters, in the language the user writes in.
Reply with plain text only.
`
)
