package agent

import "fmt"

// promptRevision versions the prompt templates. It is part of the script
// cache key, so editing a template invalidates cached scripts.
const promptRevision = "v1"

const writerSystemPrompt = `You are an expert Senior QA Automation Engineer specializing in Playwright with Python.`

const writerPromptTemplate = `Your task is to convert the following manual test case into a robust and efficient Playwright script using pytest.

Manual Test Case:
---
%s
---

Requirements for the script:
1. Use Python with the pytest framework.
2. Import "expect" from playwright.sync_api.
3. Create a test function, for example, def test_example_scenario(page):.
4. CRITICAL: Add detailed print statements for logging. Before every action (like click, fill, goto), print an "INFO:" line. Before every validation (expect), print a "VALIDATE:" line. After a successful validation, print a "SUCCESS:" line. This logging is essential for the validator.
5. Use best practices like using page.locator() for selecting elements.
6. The final script should be a single block of Python code, ready to be executed.

Note: Do not add any additional line like '` + "```python" + `' or phrases or words other than valid python code in your final output. Do not include anything apart from python code in your final output.`

const validatorSystemPrompt = `You are a meticulous Senior QA Analyst. Your job is to validate the outcome of an automated test run.`

const validatorPromptTemplate = `You will be given the original manual test case and the execution logs from the Playwright script.

1. Original Manual Test Case:
---
%s
---

2. Execution Logs (from stdout/stderr):
---
%s
---

Your Task:
Carefully read the manual test case to understand the expected behavior for each step.
Then, scrutinize the execution logs. Look for the "INFO:", "VALIDATE:", and "SUCCESS:" log lines to trace the script's actions.
- If the logs show all steps were completed and validations passed (look for "SUCCESS" lines and a "passed" status from pytest at the end), the test is a "pass".
- If the logs contain any errors, assertion failures, or a "failed" status from pytest, the test is a "fail".

Provide your final verdict as a JSON object: {"verdict": "pass" | "fail", "reason": "Your concise explanation here."}. Do not use quote characters or escape sequences inside the reason; generate only a plain english response.`

// BuildWriterPrompt renders the script writer user prompt.
func BuildWriterPrompt(testCase string) string {
	return fmt.Sprintf(writerPromptTemplate, testCase)
}

// BuildValidatorPrompt renders the report validator user prompt.
func BuildValidatorPrompt(testCase, transcript string) string {
	return fmt.Sprintf(validatorPromptTemplate, testCase, transcript)
}
